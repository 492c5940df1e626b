package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/patient/domain"
	"github.com/dentora/dentora/internal/patient/repository"
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
		CREATE TABLE patients (
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
		)
	`).Error; err != nil {
		t.Fatalf("create patients table: %v", err)
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

func TestCreate_TrimsFieldsAndDefaultsActive(t *testing.T) {
	db := setupDB(t, "patient_create")
	svc := newTestService(t, db)

	patient, err := svc.Create(context.Background(), domain.CreatePatientRequest{
		FirstName:   "  Ada ",
		LastName:    " Lovelace ",
		DateOfBirth: "1985-12-10",
		Email:       "ada@example.com",
		Phone:       " 555-0101 ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if patient.FirstName != "Ada" || patient.LastName != "Lovelace" {
		t.Errorf("name not trimmed: %q %q", patient.FirstName, patient.LastName)
	}
	if patient.Phone != "555-0101" {
		t.Errorf("phone not trimmed: %q", patient.Phone)
	}
	if patient.Status != domain.PatientActive {
		t.Errorf("status: got %s, want active", patient.Status)
	}
	if patient.DateOfBirth == nil || *patient.DateOfBirth != "1985-12-10" {
		t.Errorf("date of birth: got %v", patient.DateOfBirth)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := setupDB(t, "patient_validation")
	svc := newTestService(t, db)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreatePatientRequest
		want error
	}{
		{"missing last name", domain.CreatePatientRequest{FirstName: "Ada"}, domain.ErrInvalidName},
		{"blank first name", domain.CreatePatientRequest{FirstName: "   ", LastName: "Lovelace"}, domain.ErrInvalidName},
		{"bad email", domain.CreatePatientRequest{FirstName: "Ada", LastName: "Lovelace", Email: "nope"}, domain.ErrInvalidEmail},
		{"bad date of birth", domain.CreatePatientRequest{FirstName: "Ada", LastName: "Lovelace", DateOfBirth: "12/10/1985"}, domain.ErrInvalidDateOfBirth},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.req); err != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestUpdate_PartialAndStatusTransitions(t *testing.T) {
	db := setupDB(t, "patient_update")
	svc := newTestService(t, db)
	ctx := context.Background()

	patient, err := svc.Create(ctx, domain.CreatePatientRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Phone:     "555-0199",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	alerts := "penicillin allergy"
	status := "inactive"
	updated, err := svc.Update(ctx, domain.UpdatePatientRequest{
		ID:            patient.ID.String(),
		MedicalAlerts: &alerts,
		Status:        &status,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MedicalAlerts != alerts {
		t.Errorf("alerts: got %q", updated.MedicalAlerts)
	}
	if updated.Status != domain.PatientInactive {
		t.Errorf("status: got %s, want inactive", updated.Status)
	}
	if updated.Phone != "555-0199" {
		t.Errorf("untouched phone changed: %q", updated.Phone)
	}

	bogus := "archived"
	if _, err := svc.Update(ctx, domain.UpdatePatientRequest{
		ID:     patient.ID.String(),
		Status: &bogus,
	}); err != domain.ErrInvalidStatus {
		t.Errorf("bad status: got %v, want ErrInvalidStatus", err)
	}

	blank := " "
	if _, err := svc.Update(ctx, domain.UpdatePatientRequest{
		ID:        patient.ID.String(),
		FirstName: &blank,
	}); err != domain.ErrInvalidName {
		t.Errorf("blank name: got %v, want ErrInvalidName", err)
	}
}

func TestGetByID_UnknownPatient(t *testing.T) {
	db := setupDB(t, "patient_get")
	svc := newTestService(t, db)
	ctx := context.Background()

	if _, err := svc.GetByID(ctx, domain.GetPatientRequest{ID: "not-a-number"}); err != domain.ErrInvalidID {
		t.Errorf("bad id: got %v, want ErrInvalidID", err)
	}
	if _, err := svc.GetByID(ctx, domain.GetPatientRequest{ID: "123456789"}); err != domain.ErrNotFound {
		t.Errorf("missing patient: got %v, want ErrNotFound", err)
	}
}

func TestList_FiltersAndPaginates(t *testing.T) {
	db := setupDB(t, "patient_list")
	svc := newTestService(t, db)
	ctx := context.Background()

	names := []string{"Amber", "Brook", "Caleb", "Dalia", "Ezra"}
	for _, name := range names {
		if _, err := svc.Create(ctx, domain.CreatePatientRequest{
			FirstName: name,
			LastName:  "Stone",
		}); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	resp, err := svc.List(ctx, domain.ListPatientRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Patients) != 2 {
		t.Fatalf("page: got %d, want 2", len(resp.Patients))
	}
	if !resp.PageInfo.HasMore || resp.PageInfo.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	all, err := svc.List(ctx, domain.ListPatientRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all.Patients) != len(names) {
		t.Fatalf("all patients: got %d, want %d", len(all.Patients), len(names))
	}
	if all.PageInfo.HasMore {
		t.Error("final page still reports more results")
	}

	byName, err := svc.List(ctx, domain.ListPatientRequest{Name: "Dal"})
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if len(byName.Patients) != 1 || byName.Patients[0].FirstName != "Dalia" {
		t.Errorf("name filter: got %v", byName.Patients)
	}
}
