// Package domain contains persistence models for multi-visit treatment
// plans proposed to patients.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PlanStatus represents treatment plan lifecycle states.
type PlanStatus string

const (
	PlanStatusProposed   PlanStatus = "proposed"
	PlanStatusAccepted   PlanStatus = "accepted"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusCancelled  PlanStatus = "cancelled"
)

func (s PlanStatus) Terminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusCancelled
}

// planTransitions mirrors how a plan moves through the clinic: proposed
// to the patient, accepted, work underway, then done or abandoned.
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusProposed:   {PlanStatusAccepted, PlanStatusCancelled},
	PlanStatusAccepted:   {PlanStatusInProgress, PlanStatusCompleted, PlanStatusCancelled},
	PlanStatusInProgress: {PlanStatusCompleted, PlanStatusCancelled},
}

func CanTransition(from, to PlanStatus) bool {
	for _, allowed := range planTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TreatmentPlan is a proposed course of treatment. EstimatedCents is
// the sum of its items' estimates and is recomputed on every item
// change.
type TreatmentPlan struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	PatientID      snowflake.ID      `gorm:"column:patient_id;not null;index" json:"patient_id"`
	PractitionerID *snowflake.ID     `gorm:"column:practitioner_id;index" json:"practitioner_id,omitempty"`
	Title          string            `gorm:"type:text;not null" json:"title"`
	Diagnosis      string            `gorm:"type:text" json:"diagnosis,omitempty"`
	Status         PlanStatus        `gorm:"type:text;not null;default:'proposed'" json:"status"`
	EstimatedCents int64             `gorm:"column:estimated_cents;not null;default:0" json:"estimated_cents"`
	Notes          string            `gorm:"type:text" json:"notes,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TreatmentPlan) TableName() string { return "treatment_plans" }

// PlanItem is one planned procedure within a treatment plan.
type PlanItem struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PlanID        snowflake.ID `gorm:"column:plan_id;not null;index" json:"plan_id"`
	ProductID     *int64       `gorm:"column:product_id" json:"product_id,omitempty"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	ToothNumber   string       `gorm:"column:tooth_number;type:text" json:"tooth_number,omitempty"`
	EstimateCents int64        `gorm:"column:estimate_cents;not null" json:"estimate_cents"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PlanItem) TableName() string { return "treatment_plan_items" }

// EstimatedTotal sums item estimates.
func EstimatedTotal(items []PlanItem) int64 {
	var total int64
	for _, item := range items {
		total += item.EstimateCents
	}
	return total
}
