package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/clock"
	obsmetrics "github.com/dentora/dentora/internal/observability/metrics"
	productdomain "github.com/dentora/dentora/internal/product/domain"
	"github.com/dentora/dentora/internal/treatmentplan/domain"
	"github.com/dentora/dentora/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Metrics     *obsmetrics.Metrics `optional:"true"`
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	metrics     *obsmetrics.Metrics
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("treatmentplan.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		metrics:     p.Metrics,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePlanRequest) (domain.PlanWithItems, error) {
	patientID, err := parseSnowflake(req.PatientID, domain.ErrInvalidPatient)
	if err != nil {
		return domain.PlanWithItems{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.PlanWithItems{}, domain.ErrInvalidTitle
	}

	var practitionerID *snowflake.ID
	if strings.TrimSpace(req.PractitionerID) != "" {
		parsed, err := parseSnowflake(req.PractitionerID, domain.ErrInvalidID)
		if err != nil {
			return domain.PlanWithItems{}, err
		}
		practitionerID = &parsed
	}

	now := s.clock.Now().UTC()
	plan := domain.TreatmentPlan{
		ID:             s.genID.Generate(),
		PatientID:      patientID,
		PractitionerID: practitionerID,
		Title:          title,
		Diagnosis:      strings.TrimSpace(req.Diagnosis),
		Status:         domain.PlanStatusProposed,
		Notes:          strings.TrimSpace(req.Notes),
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var items []domain.PlanItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items = items[:0]
		for _, itemReq := range req.Items {
			item, err := s.buildItem(ctx, tx, plan.ID, itemReq, now)
			if err != nil {
				return err
			}
			items = append(items, *item)
		}
		plan.EstimatedCents = domain.EstimatedTotal(items)

		if err := s.repo.Insert(ctx, tx, &plan); err != nil {
			return err
		}
		for i := range items {
			if err := s.repo.InsertItem(ctx, tx, &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.PlanWithItems{}, err
	}

	s.audit(ctx, "treatment_plan.created", plan.ID, map[string]any{
		"patient_id":      plan.PatientID.String(),
		"title":           plan.Title,
		"estimated_cents": plan.EstimatedCents,
	})
	return domain.PlanWithItems{TreatmentPlan: plan, Items: items}, nil
}

// buildItem resolves an item request against the product catalog the
// same way invoice items are built: an explicit estimate wins over the
// product's list price.
func (s *Service) buildItem(ctx context.Context, db *gorm.DB, planID snowflake.ID, req domain.CreatePlanItemRequest, now time.Time) (*domain.PlanItem, error) {
	description := strings.TrimSpace(req.Description)
	var productID *int64
	var estimate int64

	if trimmed := strings.TrimSpace(req.ProductID); trimmed != "" {
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil || parsed == 0 {
			return nil, domain.ErrInvalidItem
		}
		product, err := s.productRepo.FindByID(ctx, db, parsed)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.ErrInvalidItem
		}
		productID = &parsed
		estimate = product.UnitPriceCents
		if description == "" {
			description = product.Name
		}
	}

	if req.EstimateCents != nil {
		estimate = *req.EstimateCents
	}
	if estimate < 0 {
		return nil, domain.ErrInvalidEstimate
	}
	if description == "" {
		return nil, domain.ErrInvalidItem
	}

	return &domain.PlanItem{
		ID:            s.genID.Generate(),
		PlanID:        planID,
		ProductID:     productID,
		Description:   description,
		ToothNumber:   strings.TrimSpace(req.ToothNumber),
		EstimateCents: estimate,
		CreatedAt:     now,
	}, nil
}

func (s *Service) AddItem(ctx context.Context, req domain.AddPlanItemRequest) (domain.PlanWithItems, error) {
	return s.mutateItems(ctx, req.PlanID, "treatment_plan.item_added", func(tx *gorm.DB, plan *domain.TreatmentPlan) error {
		item, err := s.buildItem(ctx, tx, plan.ID, req.Item, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		return s.repo.InsertItem(ctx, tx, item)
	})
}

func (s *Service) RemoveItem(ctx context.Context, req domain.RemovePlanItemRequest) (domain.PlanWithItems, error) {
	itemID, err := parseSnowflake(req.ItemID, domain.ErrInvalidID)
	if err != nil {
		return domain.PlanWithItems{}, err
	}
	return s.mutateItems(ctx, req.PlanID, "treatment_plan.item_removed", func(tx *gorm.DB, plan *domain.TreatmentPlan) error {
		return s.repo.DeleteItem(ctx, tx, plan.ID, itemID)
	})
}

// mutateItems locks the plan, applies the mutation and re-derives the
// estimated total. Items are editable until work starts.
func (s *Service) mutateItems(ctx context.Context, planID string, action string, mutate func(tx *gorm.DB, plan *domain.TreatmentPlan) error) (domain.PlanWithItems, error) {
	id, err := parseSnowflake(planID, domain.ErrInvalidID)
	if err != nil {
		return domain.PlanWithItems{}, err
	}

	var result domain.PlanWithItems
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if plan == nil {
			return domain.ErrNotFound
		}
		if plan.Status != domain.PlanStatusProposed && plan.Status != domain.PlanStatusAccepted {
			return domain.ErrPlanLocked
		}

		if err := mutate(tx, plan); err != nil {
			return err
		}

		items, err := s.repo.FindItems(ctx, tx, plan.ID)
		if err != nil {
			return err
		}
		plan.EstimatedCents = domain.EstimatedTotal(items)
		plan.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, plan); err != nil {
			return err
		}
		result = domain.PlanWithItems{TreatmentPlan: *plan, Items: items}
		return nil
	})
	if err != nil {
		return domain.PlanWithItems{}, err
	}

	s.audit(ctx, action, result.ID, map[string]any{
		"estimated_cents": result.EstimatedCents,
	})
	return result, nil
}

func (s *Service) Accept(ctx context.Context, id string) (domain.TreatmentPlan, error) {
	return s.transition(ctx, id, domain.PlanStatusAccepted, "treatment_plan.accepted", nil)
}

func (s *Service) Start(ctx context.Context, id string) (domain.TreatmentPlan, error) {
	return s.transition(ctx, id, domain.PlanStatusInProgress, "treatment_plan.started", nil)
}

func (s *Service) Complete(ctx context.Context, id string) (domain.TreatmentPlan, error) {
	return s.transition(ctx, id, domain.PlanStatusCompleted, "treatment_plan.completed", nil)
}

func (s *Service) Cancel(ctx context.Context, req domain.TransitionPlanRequest) (domain.TreatmentPlan, error) {
	reason := strings.TrimSpace(req.Reason)
	return s.transition(ctx, req.PlanID, domain.PlanStatusCancelled, "treatment_plan.cancelled", func(plan *domain.TreatmentPlan) {
		if reason == "" {
			return
		}
		if plan.Notes == "" {
			plan.Notes = "Cancelled: " + reason
		} else {
			plan.Notes += "\nCancelled: " + reason
		}
	})
}

func (s *Service) transition(ctx context.Context, id string, to domain.PlanStatus, action string, mutate func(plan *domain.TreatmentPlan)) (domain.TreatmentPlan, error) {
	planID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return domain.TreatmentPlan{}, err
	}

	var result domain.TreatmentPlan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindByIDForUpdate(ctx, tx, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(plan.Status, to) {
			return domain.ErrInvalidTransition
		}

		plan.Status = to
		if mutate != nil {
			mutate(plan)
		}
		plan.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, plan); err != nil {
			return err
		}
		result = *plan
		return nil
	})
	if err != nil {
		return domain.TreatmentPlan{}, err
	}

	s.audit(ctx, action, result.ID, map[string]any{
		"status": string(result.Status),
	})
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.PlanWithItems, error) {
	planID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return domain.PlanWithItems{}, err
	}

	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return domain.PlanWithItems{}, err
	}
	if plan == nil {
		return domain.PlanWithItems{}, domain.ErrNotFound
	}

	items, err := s.repo.FindItems(ctx, s.db, plan.ID)
	if err != nil {
		return domain.PlanWithItems{}, err
	}
	return domain.PlanWithItems{TreatmentPlan: *plan, Items: items}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPlanRequest) (domain.ListPlanResponse, error) {
	filter := domain.ListPlanFilter{
		PatientID: strings.TrimSpace(req.PatientID),
		Status:    strings.TrimSpace(req.Status),
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListPlanResponse{}, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPlanResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(plan *domain.TreatmentPlan) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        plan.ID.String(),
			CreatedAt: plan.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	plans := make([]domain.TreatmentPlan, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		plans = append(plans, *item)
	}

	resp := domain.ListPlanResponse{Plans: plans}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "treatment_plan", &targetID, metadata)
}

func parseSnowflake(value string, sentinel error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, sentinel
	}
	return id, nil
}
