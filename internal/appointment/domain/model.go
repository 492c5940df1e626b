package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// Appointment is a booked slot in a practitioner's day. Rows are never
// hard-deleted; cancellations and no-shows are terminal statuses.
type Appointment struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	AppointmentNumber string        `gorm:"column:appointment_number;not null;uniqueIndex" json:"appointment_number"`
	PatientID         snowflake.ID  `gorm:"column:patient_id;not null;index" json:"patient_id"`
	PractitionerID    snowflake.ID  `gorm:"column:practitioner_id;not null;index:idx_appointments_practitioner_day,priority:1" json:"practitioner_id"`
	Date              string        `gorm:"column:date;type:text;not null;index:idx_appointments_practitioner_day,priority:2" json:"date"`
	StartTime         string        `gorm:"column:start_time;type:text;not null" json:"start_time"`
	DurationMin       int           `gorm:"column:duration_min;not null" json:"duration_min"`
	Status            Status        `gorm:"column:status;not null;default:'scheduled'" json:"status"`
	ChiefComplaint    string        `gorm:"column:chief_complaint;type:text" json:"chief_complaint,omitempty"`
	TreatmentNotes    string        `gorm:"column:treatment_notes;type:text" json:"treatment_notes,omitempty"`
	CancelReason      string        `gorm:"column:cancel_reason;type:text" json:"cancel_reason,omitempty"`
	CreatedBy         *snowflake.ID `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Reminder marks an appointment as having been queued for a patient
// reminder. One row per appointment; its existence is the dedup guard.
type Reminder struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	AppointmentID snowflake.ID `gorm:"column:appointment_id;not null;uniqueIndex" json:"appointment_id"`
	QueuedAt      time.Time    `gorm:"column:queued_at;not null" json:"queued_at"`
}

func (Reminder) TableName() string {
	return "appointment_reminders"
}
