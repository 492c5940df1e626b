package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	appointmentdomain "github.com/dentora/dentora/internal/appointment/domain"
	apptrepo "github.com/dentora/dentora/internal/appointment/repository"
	"github.com/dentora/dentora/internal/clock"
	"github.com/dentora/dentora/internal/config"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE appointments (
			id INTEGER PRIMARY KEY,
			appointment_number TEXT NOT NULL UNIQUE,
			patient_id INTEGER NOT NULL,
			practitioner_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_min INTEGER NOT NULL,
			status TEXT NOT NULL,
			chief_complaint TEXT,
			treatment_notes TEXT,
			cancel_reason TEXT,
			created_by INTEGER,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE appointment_reminders (
			id INTEGER PRIMARY KEY,
			appointment_id INTEGER NOT NULL UNIQUE,
			queued_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestScheduler(t *testing.T, db *gorm.DB, fakeClock *clock.FakeClock) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fakeClock,
		ApptRepo: apptrepo.Provide(),
		Clinic:   config.StaticClinicConfigHolder(config.DefaultClinicConfig()),
	})
}

var testIDNode, _ = snowflake.NewNode(2)

func seedAppointment(t *testing.T, db *gorm.DB, number, date, startTime string, status appointmentdomain.Status) snowflake.ID {
	t.Helper()
	id := testIDNode.Generate()
	err := db.Exec(
		`INSERT INTO appointments (
			id, appointment_number, patient_id, practitioner_id, date, start_time,
			duration_min, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 30, ?, ?, ?)`,
		id, number, testIDNode.Generate(), testIDNode.Generate(),
		date, startTime, status, time.Now(), time.Now(),
	).Error
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return id
}

func reminderCount(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(*) FROM appointment_reminders`).Scan(&count).Error; err != nil {
		t.Fatalf("count reminders: %v", err)
	}
	return count
}

func TestRunOnce_QueuesWithinLeadWindow(t *testing.T) {
	db := setupDB(t, "sched_window")
	// Default reminder lead is 24 hours.
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	sched := newTestScheduler(t, db, fakeClock)

	inWindow := seedAppointment(t, db, "A2025060001", "2025-06-10", "14:00", appointmentdomain.StatusScheduled)
	seedAppointment(t, db, "A2025060002", "2025-06-11", "07:00", appointmentdomain.StatusConfirmed)
	// Outside the window: tomorrow afternoon and a past slot this morning.
	seedAppointment(t, db, "A2025060003", "2025-06-11", "15:00", appointmentdomain.StatusScheduled)
	seedAppointment(t, db, "A2025060004", "2025-06-10", "07:00", appointmentdomain.StatusScheduled)
	// Terminal and in-progress appointments never get reminders.
	seedAppointment(t, db, "A2025060005", "2025-06-10", "16:00", appointmentdomain.StatusCancelled)
	seedAppointment(t, db, "A2025060006", "2025-06-10", "16:30", appointmentdomain.StatusCompleted)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if got := reminderCount(t, db); got != 2 {
		t.Fatalf("reminders queued: got %d, want 2", got)
	}

	var count int
	if err := db.Raw(`SELECT COUNT(*) FROM appointment_reminders WHERE appointment_id = ?`, inWindow).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("in-window appointment has %d reminders, want 1", count)
	}
}

func TestRunOnce_DoesNotDoubleQueue(t *testing.T) {
	db := setupDB(t, "sched_dedup")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	sched := newTestScheduler(t, db, fakeClock)

	seedAppointment(t, db, "A2025060001", "2025-06-10", "14:00", appointmentdomain.StatusScheduled)

	for i := 0; i < 3; i++ {
		if err := sched.RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := reminderCount(t, db); got != 1 {
		t.Fatalf("reminders after repeated sweeps: got %d, want 1", got)
	}
}

func TestRunOnce_PicksUpAppointmentsAsClockAdvances(t *testing.T) {
	db := setupDB(t, "sched_advance")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	sched := newTestScheduler(t, db, fakeClock)

	seedAppointment(t, db, "A2025060001", "2025-06-11", "15:00", appointmentdomain.StatusScheduled)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if got := reminderCount(t, db); got != 0 {
		t.Fatalf("too-early sweep queued %d reminders, want 0", got)
	}

	// Eight hours later the appointment is inside the 24h lead window.
	fakeClock.Advance(8 * time.Hour)
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if got := reminderCount(t, db); got != 1 {
		t.Fatalf("after clock advance: got %d reminders, want 1", got)
	}
}
