// Package scheduler runs the appointment-reminder sweep: a periodic job
// that finds upcoming appointments inside the clinic's reminder lead
// window and queues one reminder per appointment.
package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	appointmentdomain "github.com/dentora/dentora/internal/appointment/domain"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/clock"
	"github.com/dentora/dentora/internal/config"
	obsmetrics "github.com/dentora/dentora/internal/observability/metrics"
	"github.com/dentora/dentora/internal/ratelimit"
	pkgdb "github.com/dentora/dentora/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reminderJobName = "appointment_reminders"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	ApptRepo appointmentdomain.Repository
	Clinic   *config.ClinicConfigHolder
	Limiter  *ratelimit.Limiter  `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
	Config   Config              `optional:"true"`
}

type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	apptRepo appointmentdomain.Repository
	clinic   *config.ClinicConfigHolder
	limiter  *ratelimit.Limiter
	metrics  *obsmetrics.Metrics
	auditSvc auditdomain.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		apptRepo: p.ApptRepo,
		clinic:   p.Clinic,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
		auditSvc: p.AuditSvc,
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("reminder sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single reminder sweep. The cross-replica run lock
// keeps multiple app instances from double-sending; losing the lock is
// not an error, the winning replica does the work.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	token, ok, err := s.limiter.TryRunLock(ctx, reminderJobName, s.cfg.RunInterval)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		if err := s.limiter.ReleaseRunLock(ctx, reminderJobName, token); err != nil {
			s.log.Warn("failed to release reminder job lock", zap.Error(err))
		}
	}()

	return s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) error {
	now := s.clock.Now().UTC()
	lead := time.Duration(s.clinic.Get().ReminderLeadHours) * time.Hour
	windowEnd := now.Add(lead)

	candidates, err := s.apptRepo.UpcomingForReminder(ctx, s.db, now, windowEnd, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	queued := 0
	for i := range candidates {
		appt := &candidates[i]
		startAt, err := appointmentStart(appt)
		if err != nil {
			s.log.Warn("skipping appointment with unparseable slot",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}
		if startAt.Before(now) || startAt.After(windowEnd) {
			continue
		}

		if err := s.queueReminder(ctx, appt, now); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				continue
			}
			return err
		}
		queued++
	}

	if queued > 0 {
		s.log.Info("queued appointment reminders",
			zap.Int("count", queued),
			zap.Time("window_end", windowEnd))
	}
	return nil
}

func (s *Scheduler) queueReminder(ctx context.Context, appt *appointmentdomain.Appointment, now time.Time) error {
	reminder := appointmentdomain.Reminder{
		ID:            s.genID.Generate(),
		AppointmentID: appt.ID,
		QueuedAt:      now,
	}
	if err := s.apptRepo.InsertReminder(ctx, s.db, &reminder); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ReminderQueued()
	}
	if s.auditSvc != nil {
		targetID := appt.ID.String()
		_ = s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeSystem), nil, "appointment.reminder_queued", "appointment", &targetID, map[string]any{
			"appointment_number": appt.AppointmentNumber,
			"date":               appt.Date,
			"start_time":         appt.StartTime,
		})
	}
	return nil
}

func appointmentStart(appt *appointmentdomain.Appointment) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", appt.Date, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := appointmentdomain.ParseStartMinute(appt.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minute) * time.Minute), nil
}
