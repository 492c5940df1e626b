package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/dentora/dentora/internal/payment/domain"
)

type ApplyPaymentRequest struct {
	InvoiceID   string `json:"invoice_id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	Notes       string `json:"notes"`
}

type VoidPaymentRequest struct {
	Reason string `json:"reason"`
}

type RefundPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (s *Server) ApplyPayment(c *gin.Context) {
	var req ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.Apply(c.Request.Context(), paymentdomain.ApplyPaymentRequest{
		InvoiceID:   req.InvoiceID,
		AmountCents: req.AmountCents,
		Method:      req.Method,
		Reference:   req.Reference,
		Notes:       req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	payment, err := s.paymentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) ListPayments(c *gin.Context) {
	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentRequest{
		PageToken: c.Query("page_token"),
		PageSize:  queryPageSize(c),
		InvoiceID: c.Query("invoice_id"),
		PatientID: c.Query("patient_id"),
		Status:    c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) VoidPayment(c *gin.Context) {
	var req VoidPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.Void(c.Request.Context(), paymentdomain.VoidPaymentRequest{
		PaymentID: c.Param("id"),
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) RefundPayment(c *gin.Context) {
	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.Refund(c.Request.Context(), paymentdomain.RefundPaymentRequest{
		PaymentID:   c.Param("id"),
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
