package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/clock"
	"github.com/dentora/dentora/internal/config"
	"github.com/dentora/dentora/internal/invoice/domain"
	obsmetrics "github.com/dentora/dentora/internal/observability/metrics"
	patientdomain "github.com/dentora/dentora/internal/patient/domain"
	productdomain "github.com/dentora/dentora/internal/product/domain"
	"github.com/dentora/dentora/internal/sequence"
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
	PatientRepo patientdomain.Repository
	ProductRepo productdomain.Repository
	Sequence    sequence.Service
	Clinic      *config.ClinicConfigHolder
	Metrics     *obsmetrics.Metrics `optional:"true"`
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	patientRepo patientdomain.Repository
	productRepo productdomain.Repository
	sequence    sequence.Service
	clinic      *config.ClinicConfigHolder
	metrics     *obsmetrics.Metrics
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		patientRepo: p.PatientRepo,
		productRepo: p.ProductRepo,
		sequence:    p.Sequence,
		clinic:      p.Clinic,
		metrics:     p.Metrics,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.InvoiceWithItems, error) {
	patientID, err := parseSnowflake(req.PatientID, domain.ErrInvalidPatient)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}
	patient, err := s.patientRepo.FindByID(ctx, s.db, patientID)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}
	if patient == nil {
		return domain.InvoiceWithItems{}, domain.ErrPatientNotFound
	}

	var appointmentID *snowflake.ID
	if strings.TrimSpace(req.AppointmentID) != "" {
		parsed, err := parseSnowflake(req.AppointmentID, domain.ErrInvalidID)
		if err != nil {
			return domain.InvoiceWithItems{}, err
		}
		appointmentID = &parsed
	}

	taxRate := s.clinic.Get().DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	if taxRate < 0 || taxRate >= 1 {
		return domain.InvoiceWithItems{}, domain.ErrInvalidTaxRate
	}
	if req.DiscountCents < 0 {
		return domain.InvoiceWithItems{}, domain.ErrInvalidDiscount
	}

	now := s.clock.Now().UTC()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		PatientID:     patientID,
		AppointmentID: appointmentID,
		Status:        domain.InvoiceStatusDraft,
		TaxRate:       taxRate,
		DiscountCents: req.DiscountCents,
		Notes:         strings.TrimSpace(req.Notes),
		Metadata:      datatypes.JSONMap{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var items []domain.InvoiceItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.sequence.Next(ctx, tx, sequence.ScopeInvoice, now)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		items = items[:0]
		for _, itemReq := range req.Items {
			item, err := s.buildItem(ctx, tx, invoice.ID, itemReq, now)
			if err != nil {
				return err
			}
			items = append(items, *item)
		}

		if err := domain.Recalculate(&invoice, items); err != nil {
			return err
		}

		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
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
		return domain.InvoiceWithItems{}, err
	}

	if s.metrics != nil {
		s.metrics.InvoiceCreated()
	}
	s.audit(ctx, "invoice.created", invoice.ID, map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"patient_id":     invoice.PatientID.String(),
		"total_cents":    invoice.TotalCents,
	})
	return domain.InvoiceWithItems{Invoice: invoice, Items: items}, nil
}

// buildItem resolves an item request against the product catalog:
// explicit price and description win, otherwise the product's values
// are used.
func (s *Service) buildItem(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, req domain.CreateItemRequest, now time.Time) (*domain.InvoiceItem, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	description := strings.TrimSpace(req.Description)
	var productID *int64
	var unitPrice int64

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
		unitPrice = product.UnitPriceCents
		if description == "" {
			description = product.Name
		}
	}

	if req.UnitPriceCents != nil {
		unitPrice = *req.UnitPriceCents
	}
	if unitPrice < 0 {
		return nil, domain.ErrInvalidPrice
	}
	if description == "" {
		return nil, domain.ErrInvalidItem
	}

	return &domain.InvoiceItem{
		ID:             s.genID.Generate(),
		InvoiceID:      invoiceID,
		ProductID:      productID,
		Description:    description,
		ToothNumber:    strings.TrimSpace(req.ToothNumber),
		Quantity:       req.Quantity,
		UnitPriceCents: unitPrice,
		LineTotalCents: domain.LineTotal(req.Quantity, unitPrice),
		CreatedAt:      now,
	}, nil
}

func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.InvoiceWithItems, error) {
	return s.mutateItems(ctx, req.InvoiceID, "invoice.item_added", func(tx *gorm.DB, invoice *domain.Invoice) error {
		item, err := s.buildItem(ctx, tx, invoice.ID, req.Item, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		return s.repo.InsertItem(ctx, tx, item)
	})
}

func (s *Service) RemoveItem(ctx context.Context, req domain.RemoveItemRequest) (domain.InvoiceWithItems, error) {
	itemID, err := parseSnowflake(req.ItemID, domain.ErrInvalidID)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}
	return s.mutateItems(ctx, req.InvoiceID, "invoice.item_removed", func(tx *gorm.DB, invoice *domain.Invoice) error {
		return s.repo.DeleteItem(ctx, tx, invoice.ID, itemID)
	})
}

func (s *Service) UpdateDiscount(ctx context.Context, req domain.UpdateDiscountRequest) (domain.InvoiceWithItems, error) {
	if req.DiscountCents < 0 {
		return domain.InvoiceWithItems{}, domain.ErrInvalidDiscount
	}
	return s.mutateItems(ctx, req.InvoiceID, "invoice.discount_updated", func(tx *gorm.DB, invoice *domain.Invoice) error {
		invoice.DiscountCents = req.DiscountCents
		return nil
	})
}

// mutateItems wraps an item-level change: it locks the invoice, applies
// the mutation, re-runs the totals engine over the surviving items and
// persists the result.
func (s *Service) mutateItems(ctx context.Context, invoiceID string, action string, mutate func(tx *gorm.DB, invoice *domain.Invoice) error) (domain.InvoiceWithItems, error) {
	id, err := parseSnowflake(invoiceID, domain.ErrInvalidID)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}

	var result domain.InvoiceWithItems
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		switch invoice.Status {
		case domain.InvoiceStatusCancelled:
			return domain.ErrCancelled
		case domain.InvoiceStatusPaid:
			return domain.ErrAlreadyPaid
		}

		if err := mutate(tx, invoice); err != nil {
			return err
		}

		items, err := s.repo.FindItems(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if err := domain.Recalculate(invoice, items); err != nil {
			return err
		}
		domain.SettleStatus(invoice)

		invoice.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}
		result = domain.InvoiceWithItems{Invoice: *invoice, Items: items}
		return nil
	})
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}

	s.audit(ctx, action, result.ID, map[string]any{
		"total_cents":   result.TotalCents,
		"balance_cents": result.BalanceCents,
	})
	return result, nil
}

func (s *Service) Send(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var result domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.InvoiceStatusDraft {
			return domain.ErrNotDraft
		}

		now := s.clock.Now().UTC()
		due := now.AddDate(0, 0, s.clinic.Get().InvoiceDueDays)
		invoice.Status = domain.InvoiceStatusSent
		invoice.IssuedAt = &now
		invoice.DueAt = &due
		invoice.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}
		result = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.audit(ctx, "invoice.sent", result.ID, map[string]any{
		"invoice_number": result.InvoiceNumber,
		"due_at":         result.DueAt,
	})
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelInvoiceRequest) (domain.Invoice, error) {
	invoiceID, err := parseSnowflake(req.InvoiceID, domain.ErrInvalidID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var result domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status == domain.InvoiceStatusCancelled {
			return domain.ErrCancelled
		}
		if invoice.AmountPaidCents > 0 {
			return domain.ErrAlreadyPaid
		}

		invoice.Status = domain.InvoiceStatusCancelled
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			if invoice.Notes == "" {
				invoice.Notes = "Cancelled: " + reason
			} else {
				invoice.Notes += "\nCancelled: " + reason
			}
		}
		invoice.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}
		result = *invoice
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.audit(ctx, "invoice.cancelled", result.ID, map[string]any{
		"invoice_number": result.InvoiceNumber,
	})
	return result, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Status != domain.InvoiceStatusDraft {
			return domain.ErrNotDraft
		}

		if err := s.repo.DeleteItems(ctx, tx, invoice.ID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, invoice.ID)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "invoice.deleted", invoiceID, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.InvoiceWithItems, error) {
	invoiceID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}
	if invoice == nil {
		return domain.InvoiceWithItems{}, domain.ErrNotFound
	}

	items, err := s.repo.FindItems(ctx, s.db, invoice.ID)
	if err != nil {
		return domain.InvoiceWithItems{}, err
	}
	return domain.InvoiceWithItems{Invoice: *invoice, Items: items}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := domain.ListInvoiceFilter{
		PatientID: strings.TrimSpace(req.PatientID),
		Status:    strings.TrimSpace(req.Status),
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := domain.ListInvoiceResponse{Invoices: invoices}
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
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "invoice", &targetID, metadata)
}

func parseSnowflake(value string, sentinel error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, sentinel
	}
	return id, nil
}
