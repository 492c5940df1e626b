package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	Update(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Appointment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Appointment, error)

	// ActiveForPractitionerDay returns non-terminal-conflict candidates
	// (everything except cancelled and no_show) for one practitioner on
	// one date. With forUpdate set the rows are locked for the duration
	// of the caller's transaction.
	ActiveForPractitionerDay(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, date string, forUpdate bool) ([]Appointment, error)

	List(ctx context.Context, db *gorm.DB, filter ListAppointmentFilter, page pagination.Pagination) ([]*Appointment, error)

	// UpcomingForReminder returns scheduled or confirmed appointments
	// whose date falls inside the window and which have no reminder row.
	UpcomingForReminder(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]Appointment, error)

	// InsertReminder records that a reminder was queued. The unique
	// index on appointment_id makes double-queueing a duplicate-key
	// error rather than a second reminder.
	InsertReminder(ctx context.Context, db *gorm.DB, reminder *Reminder) error
}
