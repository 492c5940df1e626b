// Package domain contains persistence models and the totals engine for
// patient billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is a patient bill. All monetary fields are cents.
type Invoice struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceNumber   string            `gorm:"column:invoice_number;not null;uniqueIndex" json:"invoice_number"`
	PatientID       snowflake.ID      `gorm:"column:patient_id;not null;index" json:"patient_id"`
	AppointmentID   *snowflake.ID     `gorm:"column:appointment_id;index" json:"appointment_id,omitempty"`
	Status          InvoiceStatus     `gorm:"type:text;not null;default:'draft'" json:"status"`
	TaxRate         float64           `gorm:"column:tax_rate;not null;default:0" json:"tax_rate"`
	SubtotalCents   int64             `gorm:"column:subtotal_cents;not null;default:0" json:"subtotal_cents"`
	TaxCents        int64             `gorm:"column:tax_cents;not null;default:0" json:"tax_cents"`
	DiscountCents   int64             `gorm:"column:discount_cents;not null;default:0" json:"discount_cents"`
	TotalCents      int64             `gorm:"column:total_cents;not null;default:0" json:"total_cents"`
	AmountPaidCents int64             `gorm:"column:amount_paid_cents;not null;default:0" json:"amount_paid_cents"`
	BalanceCents    int64             `gorm:"column:balance_cents;not null;default:0" json:"balance_cents"`
	IssuedAt        *time.Time        `json:"issued_at,omitempty"`
	DueAt           *time.Time        `json:"due_at,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	Notes           string            `gorm:"type:text" json:"notes,omitempty"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is a line on an invoice. Items live and die with their
// invoice.
type InvoiceItem struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID      snowflake.ID `gorm:"column:invoice_id;not null;index" json:"invoice_id"`
	ProductID      *int64       `gorm:"column:product_id;index" json:"product_id,omitempty"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	ToothNumber    string       `gorm:"column:tooth_number;type:text" json:"tooth_number,omitempty"`
	Quantity       int64        `gorm:"not null" json:"quantity"`
	UnitPriceCents int64        `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	LineTotalCents int64        `gorm:"column:line_total_cents;not null" json:"line_total_cents"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
