package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/appointment/domain"
	"github.com/dentora/dentora/pkg/db/option"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

const appointmentColumns = `id, appointment_number, patient_id, practitioner_id, date, start_time,
	duration_min, status, chief_complaint, treatment_notes, cancel_reason, created_by, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, appointment *domain.Appointment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO appointments (
			id, appointment_number, patient_id, practitioner_id, date, start_time,
			duration_min, status, chief_complaint, treatment_notes, cancel_reason,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appointment.ID,
		appointment.AppointmentNumber,
		appointment.PatientID,
		appointment.PractitionerID,
		appointment.Date,
		appointment.StartTime,
		appointment.DurationMin,
		appointment.Status,
		appointment.ChiefComplaint,
		appointment.TreatmentNotes,
		appointment.CancelReason,
		appointment.CreatedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, appointment *domain.Appointment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE appointments SET
			date = ?, start_time = ?, duration_min = ?, status = ?,
			chief_complaint = ?, treatment_notes = ?, cancel_reason = ?, updated_at = ?
		 WHERE id = ?`,
		appointment.Date,
		appointment.StartTime,
		appointment.DurationMin,
		appointment.Status,
		appointment.ChiefComplaint,
		appointment.TreatmentNotes,
		appointment.CancelReason,
		appointment.UpdatedAt,
		appointment.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Appointment, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Appointment, error) {
	return r.findByID(ctx, tx, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var appointment domain.Appointment
	if err := db.WithContext(ctx).Raw(query, id).Scan(&appointment).Error; err != nil {
		return nil, err
	}
	if appointment.ID == 0 {
		return nil, nil
	}
	return &appointment, nil
}

func (r *repo) ActiveForPractitionerDay(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, date string, forUpdate bool) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		 FROM appointments
		 WHERE practitioner_id = ? AND date = ? AND status NOT IN ('cancelled', 'no_show')`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var appointments []domain.Appointment
	if err := db.WithContext(ctx).Raw(query, practitionerID, date).Scan(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListAppointmentFilter, page pagination.Pagination) ([]*domain.Appointment, error) {
	var appointments []*domain.Appointment
	stmt := db.WithContext(ctx).Model(&domain.Appointment{})
	if id := strings.TrimSpace(filter.PatientID); id != "" {
		stmt = stmt.Where("patient_id = ?", id)
	}
	if id := strings.TrimSpace(filter.PractitionerID); id != "" {
		stmt = stmt.Where("practitioner_id = ?", id)
	}
	if date := strings.TrimSpace(filter.Date); date != "" {
		stmt = stmt.Where("date = ?", date)
	}
	if from := strings.TrimSpace(filter.DateFrom); from != "" {
		stmt = stmt.Where("date >= ?", from)
	}
	if to := strings.TrimSpace(filter.DateTo); to != "" {
		stmt = stmt.Where("date <= ?", to)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *repo) UpcomingForReminder(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	err := db.WithContext(ctx).Raw(
		`SELECT `+appointmentColumns+`
		 FROM appointments a
		 WHERE a.status IN ('scheduled', 'confirmed')
		   AND a.date >= ? AND a.date <= ?
		   AND NOT EXISTS (
			 SELECT 1 FROM appointment_reminders r WHERE r.appointment_id = a.id
		   )
		 ORDER BY a.date ASC, a.start_time ASC
		 LIMIT ?`,
		from.UTC().Format("2006-01-02"),
		to.UTC().Format("2006-01-02"),
		limit,
	).Scan(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *repo) InsertReminder(ctx context.Context, db *gorm.DB, reminder *domain.Reminder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO appointment_reminders (id, appointment_id, queued_at) VALUES (?, ?, ?)`,
		reminder.ID,
		reminder.AppointmentID,
		reminder.QueuedAt,
	).Error
}
