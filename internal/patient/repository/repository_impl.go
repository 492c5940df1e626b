package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/patient/domain"
	"github.com/dentora/dentora/pkg/db/option"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, patient *domain.Patient) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO patients (
			id, first_name, last_name, date_of_birth, email, phone, address,
			insurance_provider, insurance_number, medical_alerts, status,
			metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		patient.ID,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.InsuranceProvider,
		patient.InsuranceNumber,
		patient.MedicalAlerts,
		patient.Status,
		patient.Metadata,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, patient *domain.Patient) error {
	return db.WithContext(ctx).Exec(
		`UPDATE patients SET
			first_name = ?, last_name = ?, date_of_birth = ?, email = ?,
			phone = ?, address = ?, insurance_provider = ?, insurance_number = ?,
			medical_alerts = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.InsuranceProvider,
		patient.InsuranceNumber,
		patient.MedicalAlerts,
		patient.Status,
		patient.UpdatedAt,
		patient.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Patient, error) {
	var patient domain.Patient
	err := db.WithContext(ctx).Raw(
		`SELECT id, first_name, last_name, date_of_birth, email, phone, address,
			insurance_provider, insurance_number, medical_alerts, status,
			metadata, created_at, updated_at
		 FROM patients WHERE id = ?`,
		id,
	).Scan(&patient).Error
	if err != nil {
		return nil, err
	}
	if patient.ID == 0 {
		return nil, nil
	}
	return &patient, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPatientFilter, page pagination.Pagination) ([]*domain.Patient, error) {
	var patients []*domain.Patient
	stmt := db.WithContext(ctx).Model(&domain.Patient{})
	if filter.Name != "" {
		stmt = stmt.Where("(first_name LIKE ? OR last_name LIKE ?)",
			filter.Name+"%", filter.Name+"%")
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.Phone != "" {
		stmt = stmt.Where("phone = ?", filter.Phone)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&patients).Error
	if err != nil {
		return nil, err
	}
	return patients, nil
}
