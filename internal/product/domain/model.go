package domain

import (
	"time"

	"gorm.io/datatypes"
)

type ProductType string

const (
	TypeService ProductType = "service"
	TypeProduct ProductType = "product"
)

// Product is a billable catalog entry: a dental service (cleaning,
// filling) or a physical product (night guard, whitening kit).
// Prices are stored in cents.
type Product struct {
	ID             int64             `json:"id" gorm:"primaryKey"`
	Type           ProductType       `json:"type" gorm:"type:text;not null;default:'service'"`
	Code           string            `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name           string            `json:"name" gorm:"type:text;not null"`
	Description    *string           `json:"description,omitempty" gorm:"type:text"`
	UnitPriceCents int64             `json:"unit_price_cents" gorm:"column:unit_price_cents;not null;default:0"`
	TaxExempt      bool              `json:"tax_exempt" gorm:"not null;default:false"`
	Active         bool              `json:"active" gorm:"not null;default:true"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
