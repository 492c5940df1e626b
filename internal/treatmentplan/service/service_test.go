package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/clock"
	productrepo "github.com/dentora/dentora/internal/product/repository"
	"github.com/dentora/dentora/internal/treatmentplan/domain"
	planrepo "github.com/dentora/dentora/internal/treatmentplan/repository"
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

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE treatment_plans (
			id INTEGER PRIMARY KEY,
			patient_id INTEGER NOT NULL,
			practitioner_id INTEGER,
			title TEXT NOT NULL,
			diagnosis TEXT,
			status TEXT NOT NULL,
			estimated_cents INTEGER NOT NULL,
			notes TEXT,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE treatment_plan_items (
			id INTEGER PRIMARY KEY,
			plan_id INTEGER NOT NULL,
			product_id INTEGER,
			description TEXT NOT NULL,
			tooth_number TEXT,
			estimate_cents INTEGER NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT,
			unit_price_cents INTEGER NOT NULL,
			tax_exempt INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)),
		Repo:        planrepo.Provide(),
		ProductRepo: productrepo.Provide(),
	})
}

func seedProduct(t *testing.T, db *gorm.DB, id int64, name string, priceCents int64) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO products (id, type, code, name, unit_price_cents, tax_exempt, active, created_at, updated_at)
		 VALUES (?, 'service', ?, ?, ?, 0, 1, ?, ?)`,
		id, name, name, priceCents, time.Now(), time.Now(),
	).Error
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

var testIDNode, _ = snowflake.NewNode(2)

func TestCreate_EstimatesFromCatalog(t *testing.T) {
	db := setupDB(t, "plan_create")
	svc := newTestService(t, db)
	seedProduct(t, db, 201, "Crown", 95000)
	seedProduct(t, db, 202, "Root canal", 120000)

	plan, err := svc.Create(context.Background(), domain.CreatePlanRequest{
		PatientID: testIDNode.Generate().String(),
		Title:     "Upper right restoration",
		Diagnosis: "Deep caries #3, fractured cusp #4",
		Items: []domain.CreatePlanItemRequest{
			{ProductID: "202", ToothNumber: "3"},
			{ProductID: "201", ToothNumber: "3"},
			{ProductID: "201", ToothNumber: "4"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plan.Status != domain.PlanStatusProposed {
		t.Errorf("status: got %s, want proposed", plan.Status)
	}
	if plan.EstimatedCents != 310000 {
		t.Errorf("estimated total: got %d, want 310000", plan.EstimatedCents)
	}
	if len(plan.Items) != 3 {
		t.Fatalf("items: got %d, want 3", len(plan.Items))
	}
	if plan.Items[0].Description != "Root canal" {
		t.Errorf("description not resolved from catalog: %q", plan.Items[0].Description)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := setupDB(t, "plan_validation")
	svc := newTestService(t, db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.CreatePlanRequest{PatientID: "nope", Title: "x"}); err != domain.ErrInvalidPatient {
		t.Errorf("bad patient: got %v, want ErrInvalidPatient", err)
	}
	if _, err := svc.Create(ctx, domain.CreatePlanRequest{PatientID: testIDNode.Generate().String(), Title: "  "}); err != domain.ErrInvalidTitle {
		t.Errorf("blank title: got %v, want ErrInvalidTitle", err)
	}

	negative := int64(-100)
	_, err := svc.Create(ctx, domain.CreatePlanRequest{
		PatientID: testIDNode.Generate().String(),
		Title:     "Plan",
		Items:     []domain.CreatePlanItemRequest{{Description: "Filling", EstimateCents: &negative}},
	})
	if err != domain.ErrInvalidEstimate {
		t.Errorf("negative estimate: got %v, want ErrInvalidEstimate", err)
	}
}

func TestItems_RecomputeEstimateAndLockAfterStart(t *testing.T) {
	db := setupDB(t, "plan_items")
	svc := newTestService(t, db)
	ctx := context.Background()
	estimate := int64(45000)

	plan, err := svc.Create(ctx, domain.CreatePlanRequest{
		PatientID: testIDNode.Generate().String(),
		Title:     "Implant",
		Items:     []domain.CreatePlanItemRequest{{Description: "Extraction", EstimateCents: &estimate}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	extra := int64(250000)
	plan, err = svc.AddItem(ctx, domain.AddPlanItemRequest{
		PlanID: plan.ID.String(),
		Item:   domain.CreatePlanItemRequest{Description: "Implant fixture", ToothNumber: "19", EstimateCents: &extra},
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if plan.EstimatedCents != 295000 {
		t.Errorf("estimate after add: got %d, want 295000", plan.EstimatedCents)
	}

	var removeID string
	for _, item := range plan.Items {
		if item.Description == "Extraction" {
			removeID = item.ID.String()
		}
	}
	plan, err = svc.RemoveItem(ctx, domain.RemovePlanItemRequest{PlanID: plan.ID.String(), ItemID: removeID})
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if plan.EstimatedCents != 250000 || len(plan.Items) != 1 {
		t.Errorf("after remove: estimate %d items %d", plan.EstimatedCents, len(plan.Items))
	}

	if _, err := svc.Accept(ctx, plan.ID.String()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Start(ctx, plan.ID.String()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Once work starts the item list is frozen.
	_, err = svc.AddItem(ctx, domain.AddPlanItemRequest{
		PlanID: plan.ID.String(),
		Item:   domain.CreatePlanItemRequest{Description: "Crown", EstimateCents: &extra},
	})
	if err != domain.ErrPlanLocked {
		t.Fatalf("add item to started plan: got %v, want ErrPlanLocked", err)
	}
}

func TestLifecycle_Transitions(t *testing.T) {
	db := setupDB(t, "plan_lifecycle")
	svc := newTestService(t, db)
	ctx := context.Background()

	plan, err := svc.Create(ctx, domain.CreatePlanRequest{
		PatientID: testIDNode.Generate().String(),
		Title:     "Whitening",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := plan.ID.String()

	// Work cannot start before the patient accepts.
	if _, err := svc.Start(ctx, id); err != domain.ErrInvalidTransition {
		t.Fatalf("start proposed: got %v, want ErrInvalidTransition", err)
	}

	if p, err := svc.Accept(ctx, id); err != nil || p.Status != domain.PlanStatusAccepted {
		t.Fatalf("accept: %v (status %s)", err, p.Status)
	}
	if p, err := svc.Start(ctx, id); err != nil || p.Status != domain.PlanStatusInProgress {
		t.Fatalf("start: %v (status %s)", err, p.Status)
	}
	if p, err := svc.Complete(ctx, id); err != nil || p.Status != domain.PlanStatusCompleted {
		t.Fatalf("complete: %v (status %s)", err, p.Status)
	}

	if _, err := svc.Cancel(ctx, domain.TransitionPlanRequest{PlanID: id}); err != domain.ErrInvalidTransition {
		t.Fatalf("cancel completed: got %v, want ErrInvalidTransition", err)
	}
}

func TestCancel_AppendsReason(t *testing.T) {
	db := setupDB(t, "plan_cancel")
	svc := newTestService(t, db)
	ctx := context.Background()

	plan, err := svc.Create(ctx, domain.CreatePlanRequest{
		PatientID: testIDNode.Generate().String(),
		Title:     "Braces",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, domain.TransitionPlanRequest{PlanID: plan.ID.String(), Reason: "patient declined"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.PlanStatusCancelled {
		t.Errorf("status: got %s, want cancelled", cancelled.Status)
	}
	if !strings.Contains(cancelled.Notes, "Cancelled: patient declined") {
		t.Errorf("cancel reason missing from notes: %q", cancelled.Notes)
	}
}

func TestList_RejectsMalformedPageToken(t *testing.T) {
	db := setupDB(t, "plan_bad_token")
	svc := newTestService(t, db)

	_, err := svc.List(context.Background(), domain.ListPlanRequest{PageToken: "not-a-cursor"})
	if err != domain.ErrInvalidPageToken {
		t.Fatalf("got %v, want ErrInvalidPageToken", err)
	}
}
