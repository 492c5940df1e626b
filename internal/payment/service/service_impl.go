package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/clock"
	invoicedomain "github.com/dentora/dentora/internal/invoice/domain"
	obsmetrics "github.com/dentora/dentora/internal/observability/metrics"
	"github.com/dentora/dentora/internal/payment/domain"
	"github.com/dentora/dentora/internal/sequence"
	"github.com/dentora/dentora/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	InvoiceRepo invoicedomain.Repository
	Sequence    sequence.Service
	Metrics     *obsmetrics.Metrics `optional:"true"`
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	invoiceRepo invoicedomain.Repository
	sequence    sequence.Service
	metrics     *obsmetrics.Metrics
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		sequence:    p.Sequence,
		metrics:     p.Metrics,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Apply(ctx context.Context, req domain.ApplyPaymentRequest) (domain.PaymentResult, error) {
	invoiceID, err := parseSnowflake(req.InvoiceID, domain.ErrInvalidID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if req.AmountCents <= 0 {
		return domain.PaymentResult{}, domain.ErrInvalidAmount
	}
	method := domain.Method(strings.TrimSpace(req.Method))
	if !domain.ValidMethod(method) {
		return domain.PaymentResult{}, domain.ErrInvalidMethod
	}

	var result domain.PaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceNotFound
		}
		switch invoice.Status {
		case invoicedomain.InvoiceStatusCancelled:
			return domain.ErrInvoiceCancelled
		case invoicedomain.InvoiceStatusDraft:
			return domain.ErrInvoiceNotPayable
		}

		now := s.clock.Now().UTC()
		number, err := s.sequence.Next(ctx, tx, sequence.ScopePayment, now)
		if err != nil {
			return err
		}

		payment := domain.Payment{
			ID:            s.genID.Generate(),
			PaymentNumber: number,
			InvoiceID:     invoice.ID,
			PatientID:     invoice.PatientID,
			AmountCents:   req.AmountCents,
			Method:        method,
			Status:        domain.StatusCompleted,
			Reference:     strings.TrimSpace(req.Reference),
			Notes:         strings.TrimSpace(req.Notes),
			ReceivedAt:    now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		if err := s.settleInvoice(ctx, tx, invoice, now); err != nil {
			return err
		}
		result = domain.PaymentResult{Payment: payment, Invoice: *invoice}
		return nil
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRecorded(string(method))
	}
	s.audit(ctx, "payment.recorded", result.Payment.ID, map[string]any{
		"payment_number": result.Payment.PaymentNumber,
		"invoice_id":     result.Invoice.ID.String(),
		"amount_cents":   result.Payment.AmountCents,
		"method":         string(method),
	})
	return result, nil
}

func (s *Service) Void(ctx context.Context, req domain.VoidPaymentRequest) (domain.PaymentResult, error) {
	paymentID, err := parseSnowflake(req.PaymentID, domain.ErrInvalidID)
	if err != nil {
		return domain.PaymentResult{}, err
	}

	var result domain.PaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, invoice, err := s.lockPaymentAndInvoice(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.StatusCompleted {
			return domain.ErrPaymentNotReversible
		}

		now := s.clock.Now().UTC()
		payment.Status = domain.StatusVoided
		appendNote(payment, "Voided", req.Reason)
		payment.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.settleInvoice(ctx, tx, invoice, now); err != nil {
			return err
		}
		result = domain.PaymentResult{Payment: *payment, Invoice: *invoice}
		return nil
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentReversal("void")
	}
	s.audit(ctx, "payment.voided", result.Payment.ID, map[string]any{
		"payment_number": result.Payment.PaymentNumber,
		"invoice_id":     result.Invoice.ID.String(),
		"amount_cents":   result.Payment.AmountCents,
		"reason":         strings.TrimSpace(req.Reason),
	})
	return result, nil
}

func (s *Service) Refund(ctx context.Context, req domain.RefundPaymentRequest) (domain.PaymentResult, error) {
	paymentID, err := parseSnowflake(req.PaymentID, domain.ErrInvalidID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if req.AmountCents < 0 {
		return domain.PaymentResult{}, domain.ErrInvalidAmount
	}

	var result domain.PaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, invoice, err := s.lockPaymentAndInvoice(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if original.Status != domain.StatusCompleted || original.AmountCents <= 0 {
			return domain.ErrPaymentNotReversible
		}

		amount := req.AmountCents
		if amount == 0 {
			amount = original.AmountCents
		}
		if amount > original.AmountCents {
			return domain.ErrRefundExceedsAmount
		}

		now := s.clock.Now().UTC()
		number, err := s.sequence.Next(ctx, tx, sequence.ScopePayment, now)
		if err != nil {
			return err
		}

		refund := domain.Payment{
			ID:            s.genID.Generate(),
			PaymentNumber: number,
			InvoiceID:     invoice.ID,
			PatientID:     invoice.PatientID,
			AmountCents:   -amount,
			Method:        original.Method,
			Status:        domain.StatusCompleted,
			Reference:     "REFUND-" + original.PaymentNumber,
			RefundOfID:    &original.ID,
			Notes:         strings.TrimSpace(req.Reason),
			ReceivedAt:    now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &refund); err != nil {
			return err
		}

		original.Status = domain.StatusRefunded
		appendNote(original, "Refunded", req.Reason)
		original.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, original); err != nil {
			return err
		}
		if err := s.settleInvoice(ctx, tx, invoice, now); err != nil {
			return err
		}
		result = domain.PaymentResult{Payment: refund, Invoice: *invoice}
		return nil
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentReversal("refund")
	}
	s.audit(ctx, "payment.refunded", paymentID, map[string]any{
		"refund_number": result.Payment.PaymentNumber,
		"invoice_id":    result.Invoice.ID.String(),
		"amount_cents":  result.Payment.AmountCents,
		"reason":        strings.TrimSpace(req.Reason),
	})
	return result, nil
}

// lockPaymentAndInvoice resolves a payment, then locks its invoice
// before re-reading the payment under the same lock. The invoice row is
// the serialization point for everything touching a bill, so it is
// always taken first.
func (s *Service) lockPaymentAndInvoice(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (*domain.Payment, *invoicedomain.Invoice, error) {
	peek, err := s.repo.FindByID(ctx, tx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if peek == nil {
		return nil, nil, domain.ErrNotFound
	}

	invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, peek.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	if invoice == nil {
		return nil, nil, domain.ErrInvoiceNotFound
	}

	payment, err := s.repo.FindByIDForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment == nil {
		return nil, nil, domain.ErrNotFound
	}
	return payment, invoice, nil
}

// settleInvoice re-derives amount_paid from the payment ledger and runs
// the totals engine, so the invoice balance always reconciles with the
// sum of non-voided payments.
func (s *Service) settleInvoice(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, now time.Time) error {
	sum, err := s.repo.SumForInvoice(ctx, tx, invoice.ID)
	if err != nil {
		return err
	}
	invoice.AmountPaidCents = sum

	items, err := s.invoiceRepo.FindItems(ctx, tx, invoice.ID)
	if err != nil {
		return err
	}
	if err := invoicedomain.Recalculate(invoice, items); err != nil {
		return err
	}
	invoicedomain.SettleStatus(invoice)

	switch {
	case invoice.Status == invoicedomain.InvoiceStatusPaid && invoice.PaidAt == nil:
		invoice.PaidAt = &now
	case invoice.Status != invoicedomain.InvoiceStatusPaid:
		invoice.PaidAt = nil
	}

	invoice.UpdatedAt = now
	return s.invoiceRepo.Update(ctx, tx, invoice)
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	paymentID, err := parseSnowflake(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Payment{}, err
	}
	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *payment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	filter := domain.ListPaymentFilter{
		InvoiceID: strings.TrimSpace(req.InvoiceID),
		PatientID: strings.TrimSpace(req.PatientID),
		Status:    strings.TrimSpace(req.Status),
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListPaymentResponse{}, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPaymentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(payment *domain.Payment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        payment.ID.String(),
			CreatedAt: payment.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}

	resp := domain.ListPaymentResponse{Payments: payments}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func appendNote(payment *domain.Payment, label, reason string) {
	note := label
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		note += ": " + trimmed
	}
	if payment.Notes == "" {
		payment.Notes = note
	} else {
		payment.Notes += "\n" + note
	}
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "payment", &targetID, metadata)
}

func parseSnowflake(value string, sentinel error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, sentinel
	}
	return id, nil
}
