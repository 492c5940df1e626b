package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/treatmentplan/domain"
	"github.com/dentora/dentora/pkg/db/option"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

const planColumns = `id, patient_id, practitioner_id, title, diagnosis, status,
	estimated_cents, notes, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.TreatmentPlan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO treatment_plans (
			id, patient_id, practitioner_id, title, diagnosis, status,
			estimated_cents, notes, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.PatientID,
		plan.PractitionerID,
		plan.Title,
		plan.Diagnosis,
		plan.Status,
		plan.EstimatedCents,
		plan.Notes,
		plan.Metadata,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.TreatmentPlan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE treatment_plans SET
			title = ?, diagnosis = ?, status = ?, estimated_cents = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		plan.Title,
		plan.Diagnosis,
		plan.Status,
		plan.EstimatedCents,
		plan.Notes,
		plan.UpdatedAt,
		plan.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TreatmentPlan, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.TreatmentPlan, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.TreatmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM treatment_plans WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var plan domain.TreatmentPlan
	if err := db.WithContext(ctx).Raw(query, id).Scan(&plan).Error; err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPlanFilter, page pagination.Pagination) ([]*domain.TreatmentPlan, error) {
	var plans []*domain.TreatmentPlan
	stmt := db.WithContext(ctx).Model(&domain.TreatmentPlan{})
	if id := strings.TrimSpace(filter.PatientID); id != "" {
		stmt = stmt.Where("patient_id = ?", id)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.PlanItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO treatment_plan_items (
			id, plan_id, product_id, description, tooth_number, estimate_cents, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.PlanID,
		item.ProductID,
		item.Description,
		item.ToothNumber,
		item.EstimateCents,
		item.CreatedAt,
	).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, planID, itemID snowflake.ID) error {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM treatment_plan_items WHERE plan_id = ? AND id = ?`,
		planID, itemID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]domain.PlanItem, error) {
	var items []domain.PlanItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, plan_id, product_id, description, tooth_number, estimate_cents, created_at
		 FROM treatment_plan_items WHERE plan_id = ?
		 ORDER BY created_at asc, id asc`,
		planID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
