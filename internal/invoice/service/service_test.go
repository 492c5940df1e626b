package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/clock"
	"github.com/dentora/dentora/internal/config"
	"github.com/dentora/dentora/internal/invoice/domain"
	invoicerepo "github.com/dentora/dentora/internal/invoice/repository"
	patientrepo "github.com/dentora/dentora/internal/patient/repository"
	productrepo "github.com/dentora/dentora/internal/product/repository"
	"github.com/dentora/dentora/internal/sequence"
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
		`CREATE TABLE invoices (
			id INTEGER PRIMARY KEY,
			invoice_number TEXT NOT NULL UNIQUE,
			patient_id INTEGER NOT NULL,
			appointment_id INTEGER,
			status TEXT NOT NULL,
			tax_rate REAL NOT NULL,
			subtotal_cents INTEGER NOT NULL,
			tax_cents INTEGER NOT NULL,
			discount_cents INTEGER NOT NULL,
			total_cents INTEGER NOT NULL,
			amount_paid_cents INTEGER NOT NULL,
			balance_cents INTEGER NOT NULL,
			issued_at DATETIME,
			due_at DATETIME,
			paid_at DATETIME,
			notes TEXT,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE invoice_items (
			id INTEGER PRIMARY KEY,
			invoice_id INTEGER NOT NULL,
			product_id INTEGER,
			description TEXT NOT NULL,
			tooth_number TEXT,
			quantity INTEGER NOT NULL,
			unit_price_cents INTEGER NOT NULL,
			line_total_cents INTEGER NOT NULL,
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
		`CREATE TABLE sequences (
			scope TEXT NOT NULL,
			period TEXT NOT NULL,
			last_value INTEGER NOT NULL,
			PRIMARY KEY (scope, period)
		)`,
		`CREATE TABLE patients (
			id INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			date_of_birth TEXT,
			email TEXT,
			phone TEXT,
			address TEXT,
			insurance_provider TEXT,
			insurance_number TEXT,
			medical_alerts TEXT,
			status TEXT NOT NULL,
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

func newTestService(t *testing.T, db *gorm.DB, fakeClock *clock.FakeClock) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClock,
		Repo:        invoicerepo.Provide(),
		PatientRepo: patientrepo.Provide(),
		ProductRepo: productrepo.Provide(),
		Sequence:    sequence.NewService(sequence.Params{Log: zap.NewNop()}),
		Clinic:      config.StaticClinicConfigHolder(config.DefaultClinicConfig()),
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

// patientID seeds a patient row for the invoice to reference.
func patientID(t *testing.T, db *gorm.DB) string {
	t.Helper()
	id := testIDNode.Generate()
	err := db.Exec(
		`INSERT INTO patients (id, first_name, last_name, status, created_at, updated_at)
		 VALUES (?, 'Ada', 'Lovelace', 'active', ?, ?)`,
		id, time.Now(), time.Now(),
	).Error
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return id.String()
}

func TestCreate_TotalsAndNumber(t *testing.T) {
	db := setupDB(t, "inv_create")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	seedProduct(t, db, 101, "Cleaning", 10000)
	seedProduct(t, db, 102, "Fluoride treatment", 2500)

	// $100 + $25 at the 8% default tax rate with a $10 discount:
	// total must come back to $125.00.
	inv, err := svc.Create(context.Background(), domain.CreateInvoiceRequest{
		PatientID:     patientID(t, db),
		DiscountCents: 1000,
		Items: []domain.CreateItemRequest{
			{ProductID: "101", Quantity: 1},
			{ProductID: "102", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.InvoiceNumber != "INV2025060001" {
		t.Errorf("number: got %q, want INV2025060001", inv.InvoiceNumber)
	}
	if inv.Status != domain.InvoiceStatusDraft {
		t.Errorf("status: got %s, want draft", inv.Status)
	}
	if inv.SubtotalCents != 12500 || inv.TaxCents != 1000 || inv.TotalCents != 12500 {
		t.Errorf("totals: subtotal %d tax %d total %d", inv.SubtotalCents, inv.TaxCents, inv.TotalCents)
	}
	if inv.BalanceCents != 12500 {
		t.Errorf("balance: got %d, want 12500", inv.BalanceCents)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(inv.Items))
	}
	if inv.Items[0].Description != "Cleaning" {
		t.Errorf("item description not resolved from catalog: %q", inv.Items[0].Description)
	}
}

func TestCreate_ExplicitPriceOverridesCatalog(t *testing.T) {
	db := setupDB(t, "inv_price_override")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	seedProduct(t, db, 101, "Cleaning", 10000)

	override := int64(8500)
	inv, err := svc.Create(context.Background(), domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		Items: []domain.CreateItemRequest{
			{ProductID: "101", Quantity: 1, UnitPriceCents: &override},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Items[0].UnitPriceCents != 8500 || inv.SubtotalCents != 8500 {
		t.Errorf("override price: item %d subtotal %d", inv.Items[0].UnitPriceCents, inv.SubtotalCents)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	db := setupDB(t, "inv_validation")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	pid := patientID(t, db)
	price := int64(10000)

	badRate := 1.5
	_, err := svc.Create(ctx, domain.CreateInvoiceRequest{PatientID: pid, TaxRate: &badRate})
	if err != domain.ErrInvalidTaxRate {
		t.Errorf("tax rate: got %v, want ErrInvalidTaxRate", err)
	}

	_, err = svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: pid,
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 0, UnitPriceCents: &price}},
	})
	if err != domain.ErrInvalidQuantity {
		t.Errorf("quantity: got %v, want ErrInvalidQuantity", err)
	}

	// Discount larger than subtotal plus tax fails inside the totals engine.
	_, err = svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID:     pid,
		DiscountCents: 50000,
		Items:         []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != domain.ErrInvalidDiscount {
		t.Errorf("discount: got %v, want ErrInvalidDiscount", err)
	}
}

func TestAddRemoveItem_Recomputes(t *testing.T) {
	db := setupDB(t, "inv_items")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	price := int64(10000)

	inv, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		TaxRate:   floatPtr(0),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	extra := int64(2500)
	inv, err = svc.AddItem(ctx, domain.AddItemRequest{
		InvoiceID: inv.ID.String(),
		Item:      domain.CreateItemRequest{Description: "X-ray", Quantity: 2, UnitPriceCents: &extra},
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if inv.SubtotalCents != 15000 || inv.TotalCents != 15000 {
		t.Errorf("after add: subtotal %d total %d", inv.SubtotalCents, inv.TotalCents)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items after add: got %d, want 2", len(inv.Items))
	}

	var removeID string
	for _, item := range inv.Items {
		if item.Description == "X-ray" {
			removeID = item.ID.String()
		}
	}
	inv, err = svc.RemoveItem(ctx, domain.RemoveItemRequest{InvoiceID: inv.ID.String(), ItemID: removeID})
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if inv.SubtotalCents != 10000 || len(inv.Items) != 1 {
		t.Errorf("after remove: subtotal %d items %d", inv.SubtotalCents, len(inv.Items))
	}

	_, err = svc.RemoveItem(ctx, domain.RemoveItemRequest{InvoiceID: inv.ID.String(), ItemID: removeID})
	if err != domain.ErrItemNotFound {
		t.Errorf("remove twice: got %v, want ErrItemNotFound", err)
	}
}

func TestSend_SetsIssueAndDueDates(t *testing.T) {
	db := setupDB(t, "inv_send")
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	fakeClock := clock.NewFakeClock(now)
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	price := int64(10000)

	inv, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := svc.Send(ctx, inv.ID.String())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Status != domain.InvoiceStatusSent {
		t.Errorf("status: got %s, want sent", sent.Status)
	}
	if sent.IssuedAt == nil || !sent.IssuedAt.Equal(now) {
		t.Errorf("issued_at: got %v, want %v", sent.IssuedAt, now)
	}
	wantDue := now.AddDate(0, 0, config.DefaultClinicConfig().InvoiceDueDays)
	if sent.DueAt == nil || !sent.DueAt.Equal(wantDue) {
		t.Errorf("due_at: got %v, want %v", sent.DueAt, wantDue)
	}

	// Only drafts can be sent.
	if _, err := svc.Send(ctx, inv.ID.String()); err != domain.ErrNotDraft {
		t.Fatalf("second send: got %v, want ErrNotDraft", err)
	}
}

func TestCancel_BlockedOncePaid(t *testing.T) {
	db := setupDB(t, "inv_cancel_paid")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	price := int64(10000)

	inv, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Send(ctx, inv.ID.String()); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Simulate a recorded payment.
	if err := db.Exec(`UPDATE invoices SET amount_paid_cents = 5000, balance_cents = 5800, status = 'partial' WHERE id = ?`, inv.ID).Error; err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if _, err := svc.Cancel(ctx, domain.CancelInvoiceRequest{InvoiceID: inv.ID.String()}); err != domain.ErrAlreadyPaid {
		t.Fatalf("cancel paid invoice: got %v, want ErrAlreadyPaid", err)
	}
}

func TestCancel_AppendsReasonAndRejectsDoubleCancel(t *testing.T) {
	db := setupDB(t, "inv_cancel")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	price := int64(10000)

	inv, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, domain.CancelInvoiceRequest{InvoiceID: inv.ID.String(), Reason: "entered in error"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.InvoiceStatusCancelled {
		t.Errorf("status: got %s, want cancelled", cancelled.Status)
	}
	if !strings.Contains(cancelled.Notes, "Cancelled: entered in error") {
		t.Errorf("cancel reason missing from notes: %q", cancelled.Notes)
	}

	if _, err := svc.Cancel(ctx, domain.CancelInvoiceRequest{InvoiceID: inv.ID.String()}); err != domain.ErrCancelled {
		t.Fatalf("double cancel: got %v, want ErrCancelled", err)
	}

	// Cancelled invoices reject item changes.
	extra := int64(2500)
	_, err = svc.AddItem(ctx, domain.AddItemRequest{
		InvoiceID: inv.ID.String(),
		Item:      domain.CreateItemRequest{Description: "X-ray", Quantity: 1, UnitPriceCents: &extra},
	})
	if err != domain.ErrCancelled {
		t.Fatalf("add item to cancelled: got %v, want ErrCancelled", err)
	}
}

func TestDelete_DraftOnly(t *testing.T) {
	db := setupDB(t, "inv_delete")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	price := int64(10000)

	draft, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	sent, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: patientID(t, db),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := svc.Send(ctx, sent.ID.String()); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.Delete(ctx, draft.ID.String()); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := svc.GetByID(ctx, draft.ID.String()); err != domain.ErrNotFound {
		t.Fatalf("get deleted: got %v, want ErrNotFound", err)
	}

	if err := svc.Delete(ctx, sent.ID.String()); err != domain.ErrNotDraft {
		t.Fatalf("delete sent: got %v, want ErrNotDraft", err)
	}
}

func TestList_FiltersByPatient(t *testing.T) {
	db := setupDB(t, "inv_list")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	ctx := context.Background()
	price := int64(10000)

	first := patientID(t, db)
	second := patientID(t, db)
	for _, pid := range []string{first, first, second} {
		_, err := svc.Create(ctx, domain.CreateInvoiceRequest{
			PatientID: pid,
			Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		fakeClock.Advance(time.Minute)
	}

	resp, err := svc.List(ctx, domain.ListInvoiceRequest{PatientID: first})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Invoices) != 2 {
		t.Fatalf("filtered list: got %d invoices, want 2", len(resp.Invoices))
	}
	for _, inv := range resp.Invoices {
		if inv.PatientID.String() != first {
			t.Errorf("unexpected patient %s in filtered list", inv.PatientID)
		}
	}
}

func TestCreate_UnknownPatientRejected(t *testing.T) {
	db := setupDB(t, "inv_unknown_patient")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)
	price := int64(10000)

	// Well-formed snowflake with no backing patient row.
	_, err := svc.Create(context.Background(), domain.CreateInvoiceRequest{
		PatientID: testIDNode.Generate().String(),
		Items:     []domain.CreateItemRequest{{Description: "Exam", Quantity: 1, UnitPriceCents: &price}},
	})
	if err != domain.ErrPatientNotFound {
		t.Fatalf("got %v, want ErrPatientNotFound", err)
	}
}

func TestList_RejectsMalformedPageToken(t *testing.T) {
	db := setupDB(t, "inv_bad_token")
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fakeClock)

	_, err := svc.List(context.Background(), domain.ListInvoiceRequest{PageToken: "not-a-cursor"})
	if err != domain.ErrInvalidPageToken {
		t.Fatalf("got %v, want ErrInvalidPageToken", err)
	}
}

func floatPtr(f float64) *float64 { return &f }
