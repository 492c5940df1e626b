// Package domain contains persistence models for payments recorded
// against patient invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Method enumerates the ways the front desk can take money.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCreditCard   Method = "credit_card"
	MethodDebitCard    Method = "debit_card"
	MethodCheck        Method = "check"
	MethodBankTransfer Method = "bank_transfer"
	MethodInsurance    Method = "insurance"
)

func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodCheck, MethodBankTransfer, MethodInsurance:
		return true
	}
	return false
}

// Status represents payment lifecycle states.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusVoided    Status = "voided"
	StatusRefunded  Status = "refunded"
)

// Payment is one signed money movement against an invoice. Refunds are
// stored as separate negative-amount rows pointing back at the original
// through RefundOfID, never as edits to the original row.
type Payment struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	PaymentNumber string        `gorm:"column:payment_number;not null;uniqueIndex" json:"payment_number"`
	InvoiceID     snowflake.ID  `gorm:"column:invoice_id;not null;index" json:"invoice_id"`
	PatientID     snowflake.ID  `gorm:"column:patient_id;not null;index" json:"patient_id"`
	AmountCents   int64         `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Method        Method        `gorm:"type:text;not null" json:"method"`
	Status        Status        `gorm:"type:text;not null;default:'completed'" json:"status"`
	Reference     string        `gorm:"type:text" json:"reference,omitempty"`
	RefundOfID    *snowflake.ID `gorm:"column:refund_of_id" json:"refund_of_id,omitempty"`
	Notes         string        `gorm:"type:text" json:"notes,omitempty"`
	ReceivedAt    time.Time     `gorm:"column:received_at;not null" json:"received_at"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
