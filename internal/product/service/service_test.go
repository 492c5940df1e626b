package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/product/domain"
	"github.com/dentora/dentora/internal/product/repository"
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
		CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT,
			unit_price_cents INTEGER NOT NULL,
			tax_exempt BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error; err != nil {
		t.Fatalf("create products table: %v", err)
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
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestCreate_DefaultsTypeAndActive(t *testing.T) {
	db := setupDB(t, "product_create")
	svc := newTestService(t, db)

	created, err := svc.Create(context.Background(), domain.CreateRequest{
		Code:           "D0120",
		Name:           "Periodic oral evaluation",
		UnitPriceCents: 6500,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Type != string(domain.TypeService) {
		t.Errorf("type: got %s, want service default", created.Type)
	}
	if !created.Active {
		t.Error("new product should default to active")
	}
	if created.UnitPriceCents != 6500 {
		t.Errorf("price: got %d, want 6500", created.UnitPriceCents)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := setupDB(t, "product_validation")
	svc := newTestService(t, db)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateRequest
		want error
	}{
		{"missing code", domain.CreateRequest{Name: "Cleaning"}, domain.ErrInvalidCode},
		{"missing name", domain.CreateRequest{Code: "D1110"}, domain.ErrInvalidName},
		{"bad type", domain.CreateRequest{Code: "D1110", Name: "Cleaning", Type: "bundle"}, domain.ErrInvalidType},
		{"negative price", domain.CreateRequest{Code: "D1110", Name: "Cleaning", UnitPriceCents: -1}, domain.ErrInvalidPrice},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.req); err != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	db := setupDB(t, "product_update")
	svc := newTestService(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		Code:           "D2740",
		Name:           "Porcelain crown",
		UnitPriceCents: 120000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	price := int64(115000)
	inactive := false
	updated, err := svc.Update(ctx, domain.UpdateRequest{
		ID:             created.ID,
		UnitPriceCents: &price,
		Active:         &inactive,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UnitPriceCents != 115000 {
		t.Errorf("price: got %d, want 115000", updated.UnitPriceCents)
	}
	if updated.Active {
		t.Error("product should be inactive after update")
	}
	if updated.Name != "Porcelain crown" {
		t.Errorf("untouched name changed: %q", updated.Name)
	}

	blank := " "
	if _, err := svc.Update(ctx, domain.UpdateRequest{ID: created.ID, Name: &blank}); err != domain.ErrInvalidName {
		t.Errorf("blank name: got %v, want ErrInvalidName", err)
	}

	if _, err := svc.Update(ctx, domain.UpdateRequest{ID: "999999"}); err != domain.ErrNotFound {
		t.Errorf("missing product: got %v, want ErrNotFound", err)
	}
}

func TestList_FiltersByActive(t *testing.T) {
	db := setupDB(t, "product_list")
	svc := newTestService(t, db)
	ctx := context.Background()

	inactive := false
	seed := []domain.CreateRequest{
		{Code: "D0120", Name: "Periodic oral evaluation", UnitPriceCents: 6500},
		{Code: "D1110", Name: "Prophylaxis", UnitPriceCents: 11000},
		{Code: "D9999", Name: "Retired code", UnitPriceCents: 100, Active: &inactive},
	}
	for _, req := range seed {
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("seed %s: %v", req.Code, err)
		}
	}

	active := true
	list, err := svc.List(ctx, domain.ListRequest{Active: &active})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("active products: got %d, want 2", len(list))
	}
	for _, p := range list {
		if !p.Active {
			t.Errorf("inactive product %s in active list", p.Code)
		}
	}

	all, err := svc.List(ctx, domain.ListRequest{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all products: got %d, want 3", len(all))
	}
}
