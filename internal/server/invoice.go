package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	invoicedomain "github.com/dentora/dentora/internal/invoice/domain"
)

type CreateInvoiceRequest struct {
	PatientID     string                            `json:"patient_id"`
	AppointmentID string                            `json:"appointment_id"`
	TaxRate       *float64                          `json:"tax_rate"`
	DiscountCents int64                             `json:"discount_cents"`
	Notes         string                            `json:"notes"`
	Items         []invoicedomain.CreateItemRequest `json:"items"`
}

type UpdateInvoiceDiscountRequest struct {
	DiscountCents int64 `json:"discount_cents"`
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		TaxRate:       req.TaxRate,
		DiscountCents: req.DiscountCents,
		Notes:         req.Notes,
		Items:         req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) ListInvoices(c *gin.Context) {
	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
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

func (s *Server) AddInvoiceItem(c *gin.Context) {
	var item invoicedomain.CreateItemRequest
	if err := c.ShouldBindJSON(&item); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.AddItem(c.Request.Context(), invoicedomain.AddItemRequest{
		InvoiceID: c.Param("id"),
		Item:      item,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) RemoveInvoiceItem(c *gin.Context) {
	invoice, err := s.invoiceSvc.RemoveItem(c.Request.Context(), invoicedomain.RemoveItemRequest{
		InvoiceID: c.Param("id"),
		ItemID:    c.Param("itemId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) UpdateInvoiceDiscount(c *gin.Context) {
	var req UpdateInvoiceDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.UpdateDiscount(c.Request.Context(), invoicedomain.UpdateDiscountRequest{
		InvoiceID:     c.Param("id"),
		DiscountCents: req.DiscountCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) SendInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Cancel(c.Request.Context(), invoicedomain.CancelInvoiceRequest{
		InvoiceID: c.Param("id"),
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
