package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	patientdomain "github.com/dentora/dentora/internal/patient/domain"
)

type CreatePatientRequest struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	DateOfBirth       string `json:"date_of_birth"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	InsuranceProvider string `json:"insurance_provider"`
	InsuranceNumber   string `json:"insurance_number"`
	MedicalAlerts     string `json:"medical_alerts"`
}

type UpdatePatientRequest struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	DateOfBirth       *string `json:"date_of_birth"`
	Email             *string `json:"email"`
	Phone             *string `json:"phone"`
	Address           *string `json:"address"`
	InsuranceProvider *string `json:"insurance_provider"`
	InsuranceNumber   *string `json:"insurance_number"`
	MedicalAlerts     *string `json:"medical_alerts"`
	Status            *string `json:"status"`
}

func (s *Server) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	patient, err := s.patientSvc.Create(c.Request.Context(), patientdomain.CreatePatientRequest{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DateOfBirth:       req.DateOfBirth,
		Email:             req.Email,
		Phone:             req.Phone,
		Address:           req.Address,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceNumber:   req.InsuranceNumber,
		MedicalAlerts:     req.MedicalAlerts,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, patient)
}

func (s *Server) GetPatientByID(c *gin.Context) {
	patient, err := s.patientSvc.GetByID(c.Request.Context(), patientdomain.GetPatientRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (s *Server) ListPatients(c *gin.Context) {
	resp, err := s.patientSvc.List(c.Request.Context(), patientdomain.ListPatientRequest{
		PageToken: c.Query("page_token"),
		PageSize:  queryPageSize(c),
		Name:      c.Query("name"),
		Email:     c.Query("email"),
		Phone:     c.Query("phone"),
		Status:    c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdatePatient(c *gin.Context) {
	var req UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	patient, err := s.patientSvc.Update(c.Request.Context(), patientdomain.UpdatePatientRequest{
		ID:                c.Param("id"),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DateOfBirth:       req.DateOfBirth,
		Email:             req.Email,
		Phone:             req.Phone,
		Address:           req.Address,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceNumber:   req.InsuranceNumber,
		MedicalAlerts:     req.MedicalAlerts,
		Status:            req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func queryPageSize(c *gin.Context) int32 {
	raw := c.Query("page_size")
	if raw == "" {
		return 0
	}
	size, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || size < 0 {
		return 0
	}
	return int32(size)
}
