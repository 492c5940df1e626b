package domain

import (
	"context"
	"errors"
	"time"

	"github.com/dentora/dentora/pkg/db/pagination"
)

type CreateAppointmentRequest struct {
	PatientID      string
	PractitionerID string
	Date           string
	StartTime      string
	DurationMin    int
	ChiefComplaint string
}

type RescheduleRequest struct {
	ID          string
	Date        string
	StartTime   string
	DurationMin int
	// PractitionerID moves the appointment to another practitioner
	// when set; empty keeps the current one.
	PractitionerID string
}

type CompleteRequest struct {
	ID             string
	TreatmentNotes string
}

type CancelRequest struct {
	ID     string
	Reason string
}

type GetAppointmentRequest struct {
	ID string
}

type ListAppointmentRequest struct {
	PageToken      string
	PageSize       int32
	PatientID      string
	PractitionerID string
	Date           string
	DateFrom       string
	DateTo         string
	Status         string
}

type ListAppointmentFilter struct {
	PatientID      string
	PractitionerID string
	Date           string
	DateFrom       string
	DateTo         string
	Status         string
}

type ListAppointmentResponse struct {
	pagination.PageInfo
	Appointments []Appointment `json:"appointments"`
}

type Service interface {
	Create(ctx context.Context, req CreateAppointmentRequest) (Appointment, error)
	GetByID(ctx context.Context, req GetAppointmentRequest) (Appointment, error)
	List(ctx context.Context, req ListAppointmentRequest) (ListAppointmentResponse, error)

	// HasConflict is a non-locking read used to pre-check a slot;
	// create and reschedule re-run the check under a row lock.
	HasConflict(ctx context.Context, practitionerID, date, startTime string, durationMin int, excludeID string) (bool, error)

	Confirm(ctx context.Context, id string) (Appointment, error)
	Start(ctx context.Context, id string) (Appointment, error)
	Complete(ctx context.Context, req CompleteRequest) (Appointment, error)
	Cancel(ctx context.Context, req CancelRequest) (Appointment, error)
	MarkNoShow(ctx context.Context, id string) (Appointment, error)
	Reschedule(ctx context.Context, req RescheduleRequest) (Appointment, error)
}

// ReminderWindow is used by the reminder sweeper to find upcoming
// appointments that still expect the patient to show up.
type ReminderWindow struct {
	From time.Time
	To   time.Time
}

var (
	ErrSchedulingConflict   = errors.New("scheduling_conflict")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrNotFound             = errors.New("not_found")
	ErrPatientNotFound      = errors.New("patient_not_found")
	ErrPractitionerNotFound = errors.New("practitioner_not_found")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidPatient       = errors.New("invalid_patient")
	ErrInvalidPractitioner  = errors.New("invalid_practitioner")
	ErrInvalidDate          = errors.New("invalid_date")
	ErrInvalidTime          = errors.New("invalid_time")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrOutsideOpeningHours  = errors.New("outside_opening_hours")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
)
