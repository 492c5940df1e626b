package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/patient/domain"
	"github.com/dentora/dentora/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("patient.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePatientRequest) (domain.Patient, error) {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return domain.Patient{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Patient{}, domain.ErrInvalidEmail
	}

	var dob *string
	if trimmed := strings.TrimSpace(req.DateOfBirth); trimmed != "" {
		if _, err := time.Parse("2006-01-02", trimmed); err != nil {
			return domain.Patient{}, domain.ErrInvalidDateOfBirth
		}
		dob = &trimmed
	}

	now := time.Now().UTC()
	patient := domain.Patient{
		ID:                s.genID.Generate(),
		FirstName:         firstName,
		LastName:          lastName,
		DateOfBirth:       dob,
		Email:             email,
		Phone:             strings.TrimSpace(req.Phone),
		Address:           strings.TrimSpace(req.Address),
		InsuranceProvider: strings.TrimSpace(req.InsuranceProvider),
		InsuranceNumber:   strings.TrimSpace(req.InsuranceNumber),
		MedicalAlerts:     strings.TrimSpace(req.MedicalAlerts),
		Status:            domain.PatientActive,
		Metadata:          datatypes.JSONMap{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Insert(ctx, s.db, &patient); err != nil {
		return domain.Patient{}, err
	}

	s.audit(ctx, "patient.created", patient.ID, map[string]any{
		"first_name": patient.FirstName,
		"last_name":  patient.LastName,
	})
	return patient, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePatientRequest) (domain.Patient, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Patient{}, err
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Patient{}, err
	}
	if existing == nil {
		return domain.Patient{}, domain.ErrNotFound
	}

	if req.FirstName != nil {
		trimmed := strings.TrimSpace(*req.FirstName)
		if trimmed == "" {
			return domain.Patient{}, domain.ErrInvalidName
		}
		existing.FirstName = trimmed
	}
	if req.LastName != nil {
		trimmed := strings.TrimSpace(*req.LastName)
		if trimmed == "" {
			return domain.Patient{}, domain.ErrInvalidName
		}
		existing.LastName = trimmed
	}
	if req.DateOfBirth != nil {
		trimmed := strings.TrimSpace(*req.DateOfBirth)
		if trimmed == "" {
			existing.DateOfBirth = nil
		} else {
			if _, err := time.Parse("2006-01-02", trimmed); err != nil {
				return domain.Patient{}, domain.ErrInvalidDateOfBirth
			}
			existing.DateOfBirth = &trimmed
		}
	}
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		if trimmed != "" && !strings.Contains(trimmed, "@") {
			return domain.Patient{}, domain.ErrInvalidEmail
		}
		existing.Email = trimmed
	}
	if req.Phone != nil {
		existing.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		existing.Address = strings.TrimSpace(*req.Address)
	}
	if req.InsuranceProvider != nil {
		existing.InsuranceProvider = strings.TrimSpace(*req.InsuranceProvider)
	}
	if req.InsuranceNumber != nil {
		existing.InsuranceNumber = strings.TrimSpace(*req.InsuranceNumber)
	}
	if req.MedicalAlerts != nil {
		existing.MedicalAlerts = strings.TrimSpace(*req.MedicalAlerts)
	}
	if req.Status != nil {
		status := domain.PatientStatus(strings.TrimSpace(*req.Status))
		if status != domain.PatientActive && status != domain.PatientInactive {
			return domain.Patient{}, domain.ErrInvalidStatus
		}
		existing.Status = status
	}

	existing.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, existing); err != nil {
		return domain.Patient{}, err
	}

	s.audit(ctx, "patient.updated", existing.ID, nil)
	return *existing, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPatientRequest) (domain.ListPatientResponse, error) {
	filter := domain.ListPatientFilter{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Status:      strings.TrimSpace(req.Status),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPatientResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(patient *domain.Patient) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        patient.ID.String(),
			CreatedAt: patient.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	patients := make([]domain.Patient, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		patients = append(patients, *item)
	}

	resp := domain.ListPatientResponse{Patients: patients}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetPatientRequest) (domain.Patient, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Patient{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Patient{}, err
	}
	if item == nil {
		return domain.Patient{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) audit(ctx context.Context, action string, patientID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := patientID.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "patient", &targetID, metadata)
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
