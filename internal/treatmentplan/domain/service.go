package domain

import (
	"context"
	"errors"

	"github.com/dentora/dentora/pkg/db/pagination"
)

type CreatePlanItemRequest struct {
	ProductID     string `json:"product_id"`
	Description   string `json:"description"`
	ToothNumber   string `json:"tooth_number"`
	EstimateCents *int64 `json:"estimate_cents"`
}

type CreatePlanRequest struct {
	PatientID      string
	PractitionerID string
	Title          string
	Diagnosis      string
	Notes          string
	Items          []CreatePlanItemRequest
}

type AddPlanItemRequest struct {
	PlanID string
	Item   CreatePlanItemRequest
}

type RemovePlanItemRequest struct {
	PlanID string
	ItemID string
}

type TransitionPlanRequest struct {
	PlanID string
	Reason string
}

type ListPlanRequest struct {
	PageToken string
	PageSize  int32
	PatientID string
	Status    string
}

type ListPlanFilter struct {
	PatientID string
	Status    string
}

type PlanWithItems struct {
	TreatmentPlan
	Items []PlanItem `json:"items"`
}

type ListPlanResponse struct {
	pagination.PageInfo
	Plans []TreatmentPlan `json:"plans"`
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (PlanWithItems, error)
	GetByID(ctx context.Context, id string) (PlanWithItems, error)
	List(ctx context.Context, req ListPlanRequest) (ListPlanResponse, error)

	AddItem(ctx context.Context, req AddPlanItemRequest) (PlanWithItems, error)
	RemoveItem(ctx context.Context, req RemovePlanItemRequest) (PlanWithItems, error)

	Accept(ctx context.Context, id string) (TreatmentPlan, error)
	Start(ctx context.Context, id string) (TreatmentPlan, error)
	Complete(ctx context.Context, id string) (TreatmentPlan, error)
	Cancel(ctx context.Context, req TransitionPlanRequest) (TreatmentPlan, error)
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrItemNotFound      = errors.New("item_not_found")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidPatient    = errors.New("invalid_patient")
	ErrInvalidTitle      = errors.New("invalid_title")
	ErrInvalidItem       = errors.New("invalid_item")
	ErrInvalidEstimate   = errors.New("invalid_estimate")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrPlanLocked        = errors.New("plan_not_editable")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
)
