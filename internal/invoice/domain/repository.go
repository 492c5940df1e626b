package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)

	// FindByIDForUpdate locks the invoice row for the duration of the
	// caller's transaction. Payment application and item mutation both
	// go through this lock.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Invoice, error)

	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *InvoiceItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, invoiceID, itemID snowflake.ID) error
	DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	FindItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
}
