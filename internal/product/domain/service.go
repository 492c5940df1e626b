package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Name    string
	Type    string
	Active  *bool
	SortBy  string
	OrderBy string
}

type CreateRequest struct {
	Type           string         `json:"type"`
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Description    *string        `json:"description"`
	UnitPriceCents int64          `json:"unit_price_cents"`
	TaxExempt      bool           `json:"tax_exempt"`
	Active         *bool          `json:"active"`
	Metadata       map[string]any `json:"metadata"`
}

type UpdateRequest struct {
	ID             string  `json:"-"`
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	UnitPriceCents *int64  `json:"unit_price_cents"`
	TaxExempt      *bool   `json:"tax_exempt"`
	Active         *bool   `json:"active"`
}

type Response struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	UnitPriceCents int64          `json:"unit_price_cents"`
	TaxExempt      bool           `json:"tax_exempt"`
	Active         bool           `json:"active"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

var (
	ErrInvalidCode  = errors.New("invalid_code")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidType  = errors.New("invalid_type")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrNotFound     = errors.New("not_found")
	ErrInvalidID    = errors.New("invalid_id")
)
