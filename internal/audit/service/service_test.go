package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/audit/repository"
	"github.com/dentora/dentora/internal/auditctx"
	"github.com/dentora/dentora/internal/authctx"
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

	if err := db.Exec(`
		CREATE TABLE audit_logs (
			id INTEGER PRIMARY KEY,
			actor_type TEXT NOT NULL,
			actor_id TEXT,
			action TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT,
			metadata TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at DATETIME
		)
	`).Error; err != nil {
		t.Fatalf("create audit_logs table: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestAuditLog_MasksSensitiveMetadata(t *testing.T) {
	db := setupDB(t, "audit_masking")
	svc := newTestService(t, db)
	ctx := context.Background()

	targetID := "42"
	err := svc.AuditLog(ctx, "system", nil, "user.login_failed", "user", &targetID, map[string]any{
		"email":    "someone@example.com",
		"password": "hunter2-hunter2",
	})
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}

	var entry domain.AuditLog
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Metadata["email"] != "someone@example.com" {
		t.Errorf("email: got %v", entry.Metadata["email"])
	}
	masked, _ := entry.Metadata["password"].(string)
	if masked == "hunter2-hunter2" {
		t.Error("password stored unmasked")
	}
}

func TestAuditLog_ResolvesActorAndRequestContext(t *testing.T) {
	db := setupDB(t, "audit_actor")
	svc := newTestService(t, db)

	node, _ := snowflake.NewNode(2)
	userID := node.Generate()
	ctx := authctx.WithUser(context.Background(), authctx.User{ID: userID, Role: "dentist"})
	ctx = auditctx.WithIPAddress(ctx, "10.1.2.3")
	ctx = auditctx.WithUserAgent(ctx, "test-agent")
	ctx = auditctx.WithRequestID(ctx, "req-123")

	targetID := "77"
	if err := svc.AuditLog(ctx, "", nil, "patient.updated", "patient", &targetID, nil); err != nil {
		t.Fatalf("audit log: %v", err)
	}

	var entry domain.AuditLog
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.ActorType != string(domain.ActorTypeUser) {
		t.Errorf("actor type: got %s, want user", entry.ActorType)
	}
	if entry.ActorID == nil || *entry.ActorID != userID.String() {
		t.Errorf("actor id: got %v, want %s", entry.ActorID, userID)
	}
	if entry.IPAddress == nil || *entry.IPAddress != "10.1.2.3" {
		t.Errorf("ip address: got %v", entry.IPAddress)
	}
	if entry.Metadata["request_id"] != "req-123" {
		t.Errorf("request id: got %v", entry.Metadata["request_id"])
	}
}

func TestAuditLog_RejectsBlankAction(t *testing.T) {
	db := setupDB(t, "audit_blank")
	svc := newTestService(t, db)

	if err := svc.AuditLog(context.Background(), "system", nil, "  ", "user", nil, nil); err != domain.ErrInvalidAction {
		t.Fatalf("got %v, want ErrInvalidAction", err)
	}
}

func TestList_FiltersByActionAndTarget(t *testing.T) {
	db := setupDB(t, "audit_list")
	svc := newTestService(t, db)
	ctx := context.Background()

	patientID := "1001"
	invoiceID := "2002"
	entries := []struct {
		action     string
		targetType string
		targetID   *string
	}{
		{"patient.created", "patient", &patientID},
		{"patient.updated", "patient", &patientID},
		{"invoice.sent", "invoice", &invoiceID},
	}
	for _, e := range entries {
		if err := svc.AuditLog(ctx, "system", nil, e.action, e.targetType, e.targetID, nil); err != nil {
			t.Fatalf("seed %s: %v", e.action, err)
		}
	}

	byTarget, err := svc.List(ctx, domain.ListAuditLogRequest{
		TargetType: "patient",
		TargetID:   patientID,
	})
	if err != nil {
		t.Fatalf("list by target: %v", err)
	}
	if len(byTarget.AuditLogs) != 2 {
		t.Fatalf("patient entries: got %d, want 2", len(byTarget.AuditLogs))
	}

	byAction, err := svc.List(ctx, domain.ListAuditLogRequest{Action: "invoice.sent"})
	if err != nil {
		t.Fatalf("list by action: %v", err)
	}
	if len(byAction.AuditLogs) != 1 {
		t.Fatalf("invoice entries: got %d, want 1", len(byAction.AuditLogs))
	}

	start := time.Now().UTC().Add(time.Hour)
	end := time.Now().UTC()
	if _, err := svc.List(ctx, domain.ListAuditLogRequest{StartAt: &start, EndAt: &end}); err != domain.ErrInvalidTimeRange {
		t.Fatalf("inverted range: got %v, want ErrInvalidTimeRange", err)
	}
}
