package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSequenceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:seqdb?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec(`
		CREATE TABLE sequences (
			scope TEXT NOT NULL,
			period TEXT NOT NULL,
			last_value INTEGER NOT NULL,
			PRIMARY KEY (scope, period)
		)
	`).Error; err != nil {
		t.Fatalf("create sequences table: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DROP TABLE sequences")
	})
	return db
}

func TestNext_FormatsAndIncrements(t *testing.T) {
	db := setupSequenceDB(t)
	svc := NewService(Params{Log: zap.NewNop()})
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			number, err := svc.Next(ctx, tx, ScopeInvoice, at)
			if err != nil {
				return err
			}
			got = append(got, number)
			return nil
		})
		if err != nil {
			t.Fatalf("next invoice number: %v", err)
		}
	}

	want := []string{"INV2025060001", "INV2025060002", "INV2025060003"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("number %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNext_ScopesAreIndependent(t *testing.T) {
	db := setupSequenceDB(t)
	svc := NewService(Params{Log: zap.NewNop()})
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	var appt, inv, pay string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if appt, err = svc.Next(ctx, tx, ScopeAppointment, at); err != nil {
			return err
		}
		if inv, err = svc.Next(ctx, tx, ScopeInvoice, at); err != nil {
			return err
		}
		if pay, err = svc.Next(ctx, tx, ScopePayment, at); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("next numbers: %v", err)
	}

	if appt != "A2025060001" {
		t.Errorf("appointment number: got %q, want A2025060001", appt)
	}
	if inv != "INV2025060001" {
		t.Errorf("invoice number: got %q, want INV2025060001", inv)
	}
	if pay != "PAY2025060001" {
		t.Errorf("payment number: got %q, want PAY2025060001", pay)
	}
}

func TestNext_CounterResetsEachPeriod(t *testing.T) {
	db := setupSequenceDB(t)
	svc := NewService(Params{Log: zap.NewNop()})
	ctx := context.Background()

	december := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
	january := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)

	var last string
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 2; i++ {
			number, err := svc.Next(ctx, tx, ScopeInvoice, december)
			if err != nil {
				return err
			}
			last = number
		}
		return nil
	})
	if err != nil {
		t.Fatalf("december numbers: %v", err)
	}
	if last != "INV2025120002" {
		t.Errorf("december: got %q, want INV2025120002", last)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		number, err := svc.Next(ctx, tx, ScopeInvoice, january)
		if err != nil {
			return err
		}
		last = number
		return nil
	})
	if err != nil {
		t.Fatalf("january number: %v", err)
	}
	if last != "INV2026010001" {
		t.Errorf("january: got %q, want INV2026010001", last)
	}
}

func TestNext_RollbackDoesNotBurnNumbers(t *testing.T) {
	db := setupSequenceDB(t)
	svc := NewService(Params{Log: zap.NewNop()})
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Next(ctx, tx, ScopeInvoice, at); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	if err == nil {
		t.Fatal("expected rollback error")
	}

	var number string
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = svc.Next(ctx, tx, ScopeInvoice, at)
		return err
	})
	if err != nil {
		t.Fatalf("next after rollback: %v", err)
	}
	if number != "INV2025060001" {
		t.Errorf("after rollback: got %q, want INV2025060001", number)
	}
}

func TestNext_UnknownScope(t *testing.T) {
	db := setupSequenceDB(t)
	svc := NewService(Params{Log: zap.NewNop()})

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Next(context.Background(), tx, Scope("receipt"), time.Now())
		return err
	})
	if err != ErrUnknownScope {
		t.Fatalf("got %v, want ErrUnknownScope", err)
	}
}

func TestPeriod(t *testing.T) {
	cases := []struct {
		number string
		want   string
	}{
		{"INV2025060001", "202506"},
		{"A2025120010", "202512"},
		{"PAY2026010001", "202601"},
		{"", ""},
		{"INV", ""},
	}
	for _, tc := range cases {
		if got := Period(tc.number); got != tc.want {
			t.Errorf("Period(%q): got %q, want %q", tc.number, got, tc.want)
		}
	}
}
