package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/invoice/domain"
	"github.com/dentora/dentora/pkg/db/option"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

const invoiceColumns = `id, invoice_number, patient_id, appointment_id, status, tax_rate,
	subtotal_cents, tax_cents, discount_cents, total_cents, amount_paid_cents, balance_cents,
	issued_at, due_at, paid_at, notes, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, invoice_number, patient_id, appointment_id, status, tax_rate,
			subtotal_cents, tax_cents, discount_cents, total_cents, amount_paid_cents,
			balance_cents, issued_at, due_at, paid_at, notes, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.PatientID,
		invoice.AppointmentID,
		invoice.Status,
		invoice.TaxRate,
		invoice.SubtotalCents,
		invoice.TaxCents,
		invoice.DiscountCents,
		invoice.TotalCents,
		invoice.AmountPaidCents,
		invoice.BalanceCents,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.PaidAt,
		invoice.Notes,
		invoice.Metadata,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET
			status = ?, tax_rate = ?, subtotal_cents = ?, tax_cents = ?, discount_cents = ?,
			total_cents = ?, amount_paid_cents = ?, balance_cents = ?, issued_at = ?,
			due_at = ?, paid_at = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.Status,
		invoice.TaxRate,
		invoice.SubtotalCents,
		invoice.TaxCents,
		invoice.DiscountCents,
		invoice.TotalCents,
		invoice.AmountPaidCents,
		invoice.BalanceCents,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.PaidAt,
		invoice.Notes,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var invoice domain.Invoice
	if err := db.WithContext(ctx).Raw(query, id).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if id := strings.TrimSpace(filter.PatientID); id != "" {
		stmt = stmt.Where("patient_id = ?", id)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.InvoiceItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoice_items (
			id, invoice_id, product_id, description, tooth_number, quantity,
			unit_price_cents, line_total_cents, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.InvoiceID,
		item.ProductID,
		item.Description,
		item.ToothNumber,
		item.Quantity,
		item.UnitPriceCents,
		item.LineTotalCents,
		item.CreatedAt,
	).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, invoiceID, itemID snowflake.ID) error {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM invoice_items WHERE invoice_id = ? AND id = ?`,
		invoiceID, itemID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID,
	).Error
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, product_id, description, tooth_number, quantity,
			unit_price_cents, line_total_cents, created_at
		 FROM invoice_items WHERE invoice_id = ?
		 ORDER BY created_at asc, id asc`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
