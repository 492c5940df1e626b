package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/payment/domain"
	"github.com/dentora/dentora/pkg/db/option"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

const paymentColumns = `id, payment_number, invoice_id, patient_id, amount_cents, method,
	status, reference, refund_of_id, notes, received_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, payment_number, invoice_id, patient_id, amount_cents, method,
			status, reference, refund_of_id, notes, received_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.PaymentNumber,
		payment.InvoiceID,
		payment.PatientID,
		payment.AmountCents,
		payment.Method,
		payment.Status,
		payment.Reference,
		payment.RefundOfID,
		payment.Notes,
		payment.ReceivedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
		payment.Status,
		payment.Notes,
		payment.UpdatedAt,
		payment.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var payment domain.Payment
	if err := db.WithContext(ctx).Raw(query, id).Scan(&payment).Error; err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) SumForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var sum int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		 WHERE invoice_id = ? AND status <> ?`,
		invoiceID, domain.StatusVoided,
	).Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter, page pagination.Pagination) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if id := strings.TrimSpace(filter.InvoiceID); id != "" {
		stmt = stmt.Where("invoice_id = ?", id)
	}
	if id := strings.TrimSpace(filter.PatientID); id != "" {
		stmt = stmt.Where("patient_id = ?", id)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
