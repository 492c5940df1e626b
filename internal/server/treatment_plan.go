package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	treatmentplandomain "github.com/dentora/dentora/internal/treatmentplan/domain"
)

type CreateTreatmentPlanRequest struct {
	PatientID      string                                      `json:"patient_id"`
	PractitionerID string                                      `json:"practitioner_id"`
	Title          string                                      `json:"title"`
	Diagnosis      string                                      `json:"diagnosis"`
	Notes          string                                      `json:"notes"`
	Items          []treatmentplandomain.CreatePlanItemRequest `json:"items"`
}

type CancelTreatmentPlanRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateTreatmentPlan(c *gin.Context) {
	var req CreateTreatmentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.treatmentPlanSvc.Create(c.Request.Context(), treatmentplandomain.CreatePlanRequest{
		PatientID:      req.PatientID,
		PractitionerID: req.PractitionerID,
		Title:          req.Title,
		Diagnosis:      req.Diagnosis,
		Notes:          req.Notes,
		Items:          req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (s *Server) GetTreatmentPlanByID(c *gin.Context) {
	plan, err := s.treatmentPlanSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) ListTreatmentPlans(c *gin.Context) {
	resp, err := s.treatmentPlanSvc.List(c.Request.Context(), treatmentplandomain.ListPlanRequest{
		PageToken: c.Query("page_token"),
		PageSize:  queryPageSize(c),
		PatientID: c.Query("patient_id"),
		Status:    c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) AddTreatmentPlanItem(c *gin.Context) {
	var item treatmentplandomain.CreatePlanItemRequest
	if err := c.ShouldBindJSON(&item); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.treatmentPlanSvc.AddItem(c.Request.Context(), treatmentplandomain.AddPlanItemRequest{
		PlanID: c.Param("id"),
		Item:   item,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) RemoveTreatmentPlanItem(c *gin.Context) {
	plan, err := s.treatmentPlanSvc.RemoveItem(c.Request.Context(), treatmentplandomain.RemovePlanItemRequest{
		PlanID: c.Param("id"),
		ItemID: c.Param("itemId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) AcceptTreatmentPlan(c *gin.Context) {
	plan, err := s.treatmentPlanSvc.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) StartTreatmentPlan(c *gin.Context) {
	plan, err := s.treatmentPlanSvc.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) CompleteTreatmentPlan(c *gin.Context) {
	plan, err := s.treatmentPlanSvc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) CancelTreatmentPlan(c *gin.Context) {
	var req CancelTreatmentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.treatmentPlanSvc.Cancel(c.Request.Context(), treatmentplandomain.TransitionPlanRequest{
		PlanID: c.Param("id"),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
