package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Update(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)

	// FindByIDForUpdate locks the payment row for the duration of the
	// caller's transaction. Callers must lock the owning invoice first.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Payment, error)

	// SumForInvoice returns the signed sum of all non-voided payment
	// amounts for an invoice. This is the invoice's amount_paid.
	SumForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)

	List(ctx context.Context, db *gorm.DB, filter ListPaymentFilter, page pagination.Pagination) ([]*Payment, error)
}
