package domain

import (
	"context"
	"errors"

	invoicedomain "github.com/dentora/dentora/internal/invoice/domain"
	"github.com/dentora/dentora/pkg/db/pagination"
)

type ApplyPaymentRequest struct {
	InvoiceID   string
	AmountCents int64
	Method      string
	Reference   string
	Notes       string
}

type VoidPaymentRequest struct {
	PaymentID string
	Reason    string
}

// RefundPaymentRequest reverses a completed payment. AmountCents of
// zero means a full refund.
type RefundPaymentRequest struct {
	PaymentID   string
	AmountCents int64
	Reason      string
}

type ListPaymentRequest struct {
	PageToken string
	PageSize  int32
	InvoiceID string
	PatientID string
	Status    string
}

type ListPaymentFilter struct {
	InvoiceID string
	PatientID string
	Status    string
}

// PaymentResult carries the payment row alongside the invoice as it
// stands after the totals recompute.
type PaymentResult struct {
	Payment Payment               `json:"payment"`
	Invoice invoicedomain.Invoice `json:"invoice"`
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type Service interface {
	// Apply records a positive payment against an invoice and settles
	// the invoice's balance and status in the same transaction.
	Apply(ctx context.Context, req ApplyPaymentRequest) (PaymentResult, error)

	// Void marks a completed payment invalid. The owning invoice's
	// amount_paid drops by the voided amount and its totals are
	// recomputed in the same transaction.
	Void(ctx context.Context, req VoidPaymentRequest) (PaymentResult, error)

	// Refund creates a negative payment reversing part or all of a
	// completed payment and flips the original to refunded. Returns the
	// new refund row.
	Refund(ctx context.Context, req RefundPaymentRequest) (PaymentResult, error)

	GetByID(ctx context.Context, id string) (Payment, error)
	List(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
}

var (
	ErrNotFound             = errors.New("not_found")
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidMethod        = errors.New("invalid_method")
	ErrInvoiceCancelled     = errors.New("invoice_cancelled")
	ErrInvoiceNotPayable    = errors.New("invoice_not_payable")
	ErrPaymentNotReversible = errors.New("payment_not_reversible")
	ErrRefundExceedsAmount  = errors.New("refund_exceeds_payment")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
)
