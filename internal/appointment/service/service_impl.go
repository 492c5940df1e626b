package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/appointment/domain"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/authctx"
	"github.com/dentora/dentora/internal/clock"
	"github.com/dentora/dentora/internal/config"
	obsmetrics "github.com/dentora/dentora/internal/observability/metrics"
	patientdomain "github.com/dentora/dentora/internal/patient/domain"
	"github.com/dentora/dentora/internal/sequence"
	userdomain "github.com/dentora/dentora/internal/user/domain"
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
	PatientRepo patientdomain.Repository
	UserRepo    userdomain.Repository
	Sequence    sequence.Service
	Clinic      *config.ClinicConfigHolder `optional:"true"`
	Metrics     *obsmetrics.Metrics        `optional:"true"`
	AuditSvc    auditdomain.Service        `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	patientRepo patientdomain.Repository
	userRepo    userdomain.Repository
	sequence    sequence.Service
	clinic      *config.ClinicConfigHolder
	metrics     *obsmetrics.Metrics
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("appointment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		patientRepo: p.PatientRepo,
		userRepo:    p.UserRepo,
		sequence:    p.Sequence,
		clinic:      p.Clinic,
		metrics:     p.Metrics,
		auditSvc:    p.AuditSvc,
	}
}

// checkPatientExists resolves the booking's patient reference. Missing
// rows surface as a domain not-found rather than a database error.
func (s *Service) checkPatientExists(ctx context.Context, id snowflake.ID) error {
	patient, err := s.patientRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if patient == nil {
		return domain.ErrPatientNotFound
	}
	return nil
}

func (s *Service) checkPractitionerExists(ctx context.Context, id snowflake.ID) error {
	if _, err := s.userRepo.FindByID(ctx, id); err != nil {
		if err == userdomain.ErrUserNotFound {
			return domain.ErrPractitionerNotFound
		}
		return err
	}
	return nil
}

func (s *Service) clinicConfig() config.ClinicConfig {
	if s.clinic == nil {
		return config.DefaultClinicConfig()
	}
	return s.clinic.Get()
}

// checkBookableSlot applies the clinic-level booking rules on top of
// the structural interval checks: slots must fall inside opening hours
// and stay under the maximum appointment length.
func (s *Service) checkBookableSlot(startMinute, durationMin int) error {
	cfg := s.clinicConfig()
	if cfg.MaxAppointmentHours > 0 && durationMin > cfg.MaxAppointmentHours*60 {
		return domain.ErrInvalidDuration
	}
	if startMinute < cfg.OpeningMinute || startMinute+durationMin > cfg.ClosingMinute {
		return domain.ErrOutsideOpeningHours
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateAppointmentRequest) (domain.Appointment, error) {
	patientID, err := parseRef(req.PatientID, domain.ErrInvalidPatient)
	if err != nil {
		return domain.Appointment{}, err
	}
	practitionerID, err := parseRef(req.PractitionerID, domain.ErrInvalidPractitioner)
	if err != nil {
		return domain.Appointment{}, err
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	startMinute, err := domain.ParseStartMinute(req.StartTime)
	if err != nil {
		return domain.Appointment{}, err
	}
	durationMin := req.DurationMin
	if durationMin == 0 {
		durationMin = s.clinicConfig().DefaultDurationMin
	}
	if err := domain.ValidateInterval(startMinute, durationMin); err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkBookableSlot(startMinute, durationMin); err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkPatientExists(ctx, patientID); err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkPractitionerExists(ctx, practitionerID); err != nil {
		return domain.Appointment{}, err
	}

	now := s.clock.Now().UTC()
	appointment := domain.Appointment{
		ID:             s.genID.Generate(),
		PatientID:      patientID,
		PractitionerID: practitionerID,
		Date:           date,
		StartTime:      domain.FormatStartMinute(startMinute),
		DurationMin:    durationMin,
		Status:         domain.StatusScheduled,
		ChiefComplaint: strings.TrimSpace(req.ChiefComplaint),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if userID, ok := authctx.UserIDFromContext(ctx); ok {
		appointment.CreatedBy = &userID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the practitioner's day so the conflict check and insert
		// are atomic against concurrent bookings.
		conflict, err := s.slotTaken(ctx, tx, practitionerID, date, startMinute, durationMin, 0, true)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrSchedulingConflict
		}

		number, err := s.sequence.Next(ctx, tx, sequence.ScopeAppointment, now)
		if err != nil {
			return err
		}
		appointment.AppointmentNumber = number

		return s.repo.Insert(ctx, tx, &appointment)
	})
	if err != nil {
		if err == domain.ErrSchedulingConflict && s.metrics != nil {
			s.metrics.SchedulingConflict()
		}
		return domain.Appointment{}, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentCreated(string(appointment.Status))
	}
	s.audit(ctx, "appointment.created", appointment.ID, map[string]any{
		"appointment_number": appointment.AppointmentNumber,
		"practitioner_id":    appointment.PractitionerID.String(),
		"date":               appointment.Date,
		"start_time":         appointment.StartTime,
	})
	return appointment, nil
}

func (s *Service) HasConflict(ctx context.Context, practitionerID, date, startTime string, durationMin int, excludeID string) (bool, error) {
	practitioner, err := parseRef(practitionerID, domain.ErrInvalidPractitioner)
	if err != nil {
		return false, err
	}
	parsedDate, err := domain.ParseDate(date)
	if err != nil {
		return false, err
	}
	startMinute, err := domain.ParseStartMinute(startTime)
	if err != nil {
		return false, err
	}
	if err := domain.ValidateInterval(startMinute, durationMin); err != nil {
		return false, err
	}

	var exclude snowflake.ID
	if strings.TrimSpace(excludeID) != "" {
		exclude, err = parseRef(excludeID, domain.ErrInvalidID)
		if err != nil {
			return false, err
		}
	}

	return s.slotTaken(ctx, s.db, practitioner, parsedDate, startMinute, durationMin, exclude, false)
}

// slotTaken fetches the practitioner's active appointments for the day
// and checks the proposed interval against each in minute arithmetic.
func (s *Service) slotTaken(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID, date string, startMinute, durationMin int, exclude snowflake.ID, forUpdate bool) (bool, error) {
	existing, err := s.repo.ActiveForPractitionerDay(ctx, db, practitionerID, date, forUpdate)
	if err != nil {
		return false, err
	}
	for _, other := range existing {
		if exclude != 0 && other.ID == exclude {
			continue
		}
		otherStart, err := domain.ParseStartMinute(other.StartTime)
		if err != nil {
			s.log.Warn("stored appointment has unparseable start time",
				zap.String("appointment_id", other.ID.String()),
				zap.String("start_time", other.StartTime))
			continue
		}
		if domain.Overlaps(startMinute, durationMin, otherStart, other.DurationMin) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusConfirmed, "appointment.confirmed", nil)
}

func (s *Service) Start(ctx context.Context, id string) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusInProgress, "appointment.started", nil)
}

func (s *Service) Complete(ctx context.Context, req domain.CompleteRequest) (domain.Appointment, error) {
	notes := strings.TrimSpace(req.TreatmentNotes)
	return s.transition(ctx, req.ID, domain.StatusCompleted, "appointment.completed", func(appointment *domain.Appointment) {
		if notes != "" {
			appointment.TreatmentNotes = notes
		}
	})
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (domain.Appointment, error) {
	reason := strings.TrimSpace(req.Reason)
	return s.transition(ctx, req.ID, domain.StatusCancelled, "appointment.cancelled", func(appointment *domain.Appointment) {
		appointment.CancelReason = reason
	})
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusNoShow, "appointment.no_show", nil)
}

func (s *Service) transition(ctx context.Context, id string, to domain.Status, action string, mutate func(*domain.Appointment)) (domain.Appointment, error) {
	appointmentID, err := parseRef(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Appointment{}, err
	}

	var result domain.Appointment
	var from domain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appointment, err := s.repo.FindByIDForUpdate(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if appointment == nil {
			return domain.ErrNotFound
		}
		from = appointment.Status
		if !domain.CanTransition(appointment.Status, to) {
			return domain.ErrInvalidTransition
		}

		appointment.Status = to
		if mutate != nil {
			mutate(appointment)
		}
		appointment.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, appointment); err != nil {
			return err
		}
		result = *appointment
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if s.metrics != nil {
		s.metrics.StatusTransition(string(from), string(to))
	}
	s.audit(ctx, action, result.ID, map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	return result, nil
}

func (s *Service) Reschedule(ctx context.Context, req domain.RescheduleRequest) (domain.Appointment, error) {
	appointmentID, err := parseRef(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Appointment{}, err
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	startMinute, err := domain.ParseStartMinute(req.StartTime)
	if err != nil {
		return domain.Appointment{}, err
	}

	var newPractitioner snowflake.ID
	if strings.TrimSpace(req.PractitionerID) != "" {
		newPractitioner, err = parseRef(req.PractitionerID, domain.ErrInvalidPractitioner)
		if err != nil {
			return domain.Appointment{}, err
		}
		if err := s.checkPractitionerExists(ctx, newPractitioner); err != nil {
			return domain.Appointment{}, err
		}
	}

	var result domain.Appointment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appointment, err := s.repo.FindByIDForUpdate(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if appointment == nil {
			return domain.ErrNotFound
		}
		if !domain.Reschedulable(appointment.Status) {
			return domain.ErrInvalidTransition
		}

		practitionerID := appointment.PractitionerID
		if newPractitioner != 0 {
			practitionerID = newPractitioner
		}
		durationMin := appointment.DurationMin
		if req.DurationMin > 0 {
			durationMin = req.DurationMin
		}
		if err := domain.ValidateInterval(startMinute, durationMin); err != nil {
			return err
		}
		if err := s.checkBookableSlot(startMinute, durationMin); err != nil {
			return err
		}

		conflict, err := s.slotTaken(ctx, tx, practitionerID, date, startMinute, durationMin, appointment.ID, true)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrSchedulingConflict
		}

		oldSlot := fmt.Sprintf("%s %s", appointment.Date, appointment.StartTime)
		newSlot := fmt.Sprintf("%s %s", date, domain.FormatStartMinute(startMinute))

		appointment.PractitionerID = practitionerID
		appointment.Date = date
		appointment.StartTime = domain.FormatStartMinute(startMinute)
		appointment.DurationMin = durationMin
		appointment.UpdatedAt = s.clock.Now().UTC()

		note := fmt.Sprintf("Rescheduled from %s to %s", oldSlot, newSlot)
		if appointment.TreatmentNotes == "" {
			appointment.TreatmentNotes = note
		} else {
			appointment.TreatmentNotes += "\n" + note
		}

		if err := s.repo.Update(ctx, tx, appointment); err != nil {
			return err
		}
		result = *appointment
		return nil
	})
	if err != nil {
		if err == domain.ErrSchedulingConflict && s.metrics != nil {
			s.metrics.SchedulingConflict()
		}
		return domain.Appointment{}, err
	}

	s.audit(ctx, "appointment.rescheduled", result.ID, map[string]any{
		"date":            result.Date,
		"start_time":      result.StartTime,
		"practitioner_id": result.PractitionerID.String(),
	})
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetAppointmentRequest) (domain.Appointment, error) {
	id, err := parseRef(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Appointment{}, err
	}

	appointment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appointment == nil {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return *appointment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAppointmentRequest) (domain.ListAppointmentResponse, error) {
	filter := domain.ListAppointmentFilter{
		PatientID:      strings.TrimSpace(req.PatientID),
		PractitionerID: strings.TrimSpace(req.PractitionerID),
		Date:           strings.TrimSpace(req.Date),
		DateFrom:       strings.TrimSpace(req.DateFrom),
		DateTo:         strings.TrimSpace(req.DateTo),
		Status:         strings.TrimSpace(req.Status),
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListAppointmentResponse{}, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListAppointmentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(appointment *domain.Appointment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        appointment.ID.String(),
			CreatedAt: appointment.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	appointments := make([]domain.Appointment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		appointments = append(appointments, *item)
	}

	resp := domain.ListAppointmentResponse{Appointments: appointments}
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
	_ = s.auditSvc.AuditLog(ctx, "", nil, action, "appointment", &targetID, metadata)
}

func parseRef(value string, sentinel error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, sentinel
	}
	return id, nil
}
