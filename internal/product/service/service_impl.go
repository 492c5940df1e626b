package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Name:    strings.TrimSpace(req.Name),
		Type:    strings.TrimSpace(req.Type),
		Active:  req.Active,
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	productType := domain.ProductType(strings.TrimSpace(req.Type))
	if productType == "" {
		productType = domain.TypeService
	}
	if productType != domain.TypeService && productType != domain.TypeProduct {
		return nil, domain.ErrInvalidType
	}

	if req.UnitPriceCents < 0 {
		return nil, domain.ErrInvalidPrice
	}

	description := strings.TrimSpace(ptrToString(req.Description))
	var descriptionPtr *string
	if description != "" {
		descriptionPtr = &description
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:             s.genID.Generate().Int64(),
		Type:           productType,
		Code:           code,
		Name:           name,
		Description:    descriptionPtr,
		UnitPriceCents: req.UnitPriceCents,
		TaxExempt:      req.TaxExempt,
		Active:         active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		return nil, err
	}
	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		p.Name = name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			p.Description = nil
		} else {
			p.Description = &description
		}
	}
	if req.UnitPriceCents != nil {
		if *req.UnitPriceCents < 0 {
			return nil, domain.ErrInvalidPrice
		}
		p.UnitPriceCents = *req.UnitPriceCents
	}
	if req.TaxExempt != nil {
		p.TaxExempt = *req.TaxExempt
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, p); err != nil {
		return nil, err
	}

	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	parsed, err := s.parseID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) toResponse(p *domain.Product) domain.Response {
	resp := domain.Response{
		ID:             strconv.FormatInt(p.ID, 10),
		Type:           string(p.Type),
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		UnitPriceCents: p.UnitPriceCents,
		TaxExempt:      p.TaxExempt,
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Metadata != nil {
		resp.Metadata = map[string]any(p.Metadata)
	}
	return resp
}

func (s *Service) parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func ptrToString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
