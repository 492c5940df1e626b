package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *TreatmentPlan) error
	Update(ctx context.Context, db *gorm.DB, plan *TreatmentPlan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TreatmentPlan, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*TreatmentPlan, error)
	List(ctx context.Context, db *gorm.DB, filter ListPlanFilter, page pagination.Pagination) ([]*TreatmentPlan, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *PlanItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, planID, itemID snowflake.ID) error
	FindItems(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]PlanItem, error)
}
