package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "active"
	PatientInactive PatientStatus = "inactive"
)

type Patient struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	FirstName         string            `gorm:"not null" json:"first_name"`
	LastName          string            `gorm:"not null" json:"last_name"`
	DateOfBirth       *string           `json:"date_of_birth,omitempty"`
	Email             string            `json:"email,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	Address           string            `json:"address,omitempty"`
	InsuranceProvider string            `json:"insurance_provider,omitempty"`
	InsuranceNumber   string            `json:"insurance_number,omitempty"`
	MedicalAlerts     string            `json:"medical_alerts,omitempty"`
	Status            PatientStatus     `gorm:"not null;default:'active'" json:"status"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Patient) TableName() string {
	return "patients"
}
