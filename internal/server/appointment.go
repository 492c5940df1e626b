package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appointmentdomain "github.com/dentora/dentora/internal/appointment/domain"
)

type CreateAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	DurationMin    int    `json:"duration_min"`
	ChiefComplaint string `json:"chief_complaint"`
}

type RescheduleAppointmentRequest struct {
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	DurationMin    int    `json:"duration_min"`
	PractitionerID string `json:"practitioner_id"`
}

type CompleteAppointmentRequest struct {
	TreatmentNotes string `json:"treatment_notes"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

// bindOptionalJSON decodes the request body into obj. A missing or
// empty body leaves obj at its zero value instead of failing, so
// endpoints whose fields are all optional accept bare requests.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	appt, err := s.appointmentSvc.Create(c.Request.Context(), appointmentdomain.CreateAppointmentRequest{
		PatientID:      req.PatientID,
		PractitionerID: req.PractitionerID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		DurationMin:    req.DurationMin,
		ChiefComplaint: req.ChiefComplaint,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

func (s *Server) GetAppointmentByID(c *gin.Context) {
	appt, err := s.appointmentSvc.GetByID(c.Request.Context(), appointmentdomain.GetAppointmentRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) ListAppointments(c *gin.Context) {
	resp, err := s.appointmentSvc.List(c.Request.Context(), appointmentdomain.ListAppointmentRequest{
		PageToken:      c.Query("page_token"),
		PageSize:       queryPageSize(c),
		PatientID:      c.Query("patient_id"),
		PractitionerID: c.Query("practitioner_id"),
		Date:           c.Query("date"),
		DateFrom:       c.Query("date_from"),
		DateTo:         c.Query("date_to"),
		Status:         c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckAppointmentConflict answers whether a slot is free without
// booking it. Create re-runs the same check under a row lock, so a
// clear answer here can still lose the race.
func (s *Server) CheckAppointmentConflict(c *gin.Context) {
	durationMin := 0
	if raw := c.Query("duration_min"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		durationMin = parsed
	}

	conflict, err := s.appointmentSvc.HasConflict(
		c.Request.Context(),
		c.Query("practitioner_id"),
		c.Query("date"),
		c.Query("start_time"),
		durationMin,
		c.Query("exclude_id"),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflict": conflict})
}

func (s *Server) ConfirmAppointment(c *gin.Context) {
	appt, err := s.appointmentSvc.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) StartAppointment(c *gin.Context) {
	appt, err := s.appointmentSvc.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) CompleteAppointment(c *gin.Context) {
	var req CompleteAppointmentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	appt, err := s.appointmentSvc.Complete(c.Request.Context(), appointmentdomain.CompleteRequest{
		ID:             c.Param("id"),
		TreatmentNotes: req.TreatmentNotes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) CancelAppointment(c *gin.Context) {
	var req CancelAppointmentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	appt, err := s.appointmentSvc.Cancel(c.Request.Context(), appointmentdomain.CancelRequest{
		ID:     c.Param("id"),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) MarkAppointmentNoShow(c *gin.Context) {
	appt, err := s.appointmentSvc.MarkNoShow(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (s *Server) RescheduleAppointment(c *gin.Context) {
	var req RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	appt, err := s.appointmentSvc.Reschedule(c.Request.Context(), appointmentdomain.RescheduleRequest{
		ID:             c.Param("id"),
		Date:           req.Date,
		StartTime:      req.StartTime,
		DurationMin:    req.DurationMin,
		PractitionerID: req.PractitionerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
