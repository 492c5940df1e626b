package domain

import (
	"context"
	"errors"
	"time"

	"github.com/dentora/dentora/pkg/db/pagination"
)

type ListPatientRequest struct {
	PageToken   string
	PageSize    int32
	Name        string
	Email       string
	Phone       string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListPatientFilter struct {
	Name        string
	Email       string
	Phone       string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListPatientResponse struct {
	pagination.PageInfo
	Patients []Patient `json:"patients"`
}

type CreatePatientRequest struct {
	FirstName         string
	LastName          string
	DateOfBirth       string
	Email             string
	Phone             string
	Address           string
	InsuranceProvider string
	InsuranceNumber   string
	MedicalAlerts     string
}

type UpdatePatientRequest struct {
	ID                string
	FirstName         *string
	LastName          *string
	DateOfBirth       *string
	Email             *string
	Phone             *string
	Address           *string
	InsuranceProvider *string
	InsuranceNumber   *string
	MedicalAlerts     *string
	Status            *string
}

type GetPatientRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreatePatientRequest) (Patient, error)
	Update(context.Context, UpdatePatientRequest) (Patient, error)
	List(context.Context, ListPatientRequest) (ListPatientResponse, error)
	GetByID(context.Context, GetPatientRequest) (Patient, error)
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidDateOfBirth = errors.New("invalid_date_of_birth")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
