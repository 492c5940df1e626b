package domain

import (
	"context"
	"errors"

	"github.com/dentora/dentora/pkg/db/pagination"
)

type CreateItemRequest struct {
	ProductID      string `json:"product_id"`
	Description    string `json:"description"`
	ToothNumber    string `json:"tooth_number"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents *int64 `json:"unit_price_cents"`
}

type CreateInvoiceRequest struct {
	PatientID     string
	AppointmentID string
	TaxRate       *float64
	DiscountCents int64
	Notes         string
	Items         []CreateItemRequest
}

type AddItemRequest struct {
	InvoiceID string
	Item      CreateItemRequest
}

type RemoveItemRequest struct {
	InvoiceID string
	ItemID    string
}

type UpdateDiscountRequest struct {
	InvoiceID     string
	DiscountCents int64
}

type CancelInvoiceRequest struct {
	InvoiceID string
	Reason    string
}

type ListInvoiceRequest struct {
	PageToken string
	PageSize  int32
	PatientID string
	Status    string
}

type ListInvoiceFilter struct {
	PatientID string
	Status    string
}

type InvoiceWithItems struct {
	Invoice
	Items []InvoiceItem `json:"items"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (InvoiceWithItems, error)
	GetByID(ctx context.Context, id string) (InvoiceWithItems, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)

	AddItem(ctx context.Context, req AddItemRequest) (InvoiceWithItems, error)
	RemoveItem(ctx context.Context, req RemoveItemRequest) (InvoiceWithItems, error)
	UpdateDiscount(ctx context.Context, req UpdateDiscountRequest) (InvoiceWithItems, error)

	// Send issues a draft invoice: assigns issue and due dates and opens
	// it for payment.
	Send(ctx context.Context, id string) (Invoice, error)
	// Cancel voids an invoice that has received no payments.
	Cancel(ctx context.Context, req CancelInvoiceRequest) (Invoice, error)
	// Delete removes a draft invoice and its items.
	Delete(ctx context.Context, id string) error
}

var (
	ErrNotFound         = errors.New("not_found")
	ErrItemNotFound     = errors.New("item_not_found")
	ErrPatientNotFound  = errors.New("patient_not_found")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPatient   = errors.New("invalid_patient")
	ErrInvalidItem      = errors.New("invalid_item")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrInvalidTaxRate   = errors.New("invalid_tax_rate")
	ErrInvalidDiscount  = errors.New("invalid_discount")
	ErrNotDraft         = errors.New("invoice_not_draft")
	ErrAlreadyPaid      = errors.New("invoice_has_payments")
	ErrCancelled        = errors.New("invoice_cancelled")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
