package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dentora/dentora/internal/user/domain"
	"github.com/dentora/dentora/internal/user/repository"
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
		CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			display_name TEXT NOT NULL,
			role TEXT NOT NULL,
			specialty TEXT,
			status TEXT NOT NULL,
			last_password_changed DATETIME,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error; err != nil {
		t.Fatalf("create users table: %v", err)
	}
	if err := db.Exec(`
		CREATE TABLE sessions (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			session_token_hash TEXT NOT NULL UNIQUE,
			user_agent TEXT,
			ip_address TEXT,
			expires_at DATETIME NOT NULL,
			revoked_at DATETIME,
			created_at DATETIME,
			last_seen_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		t.Fatalf("create sessions table: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	repo, sessionRepo := repository.New(db)
	return New(Params{
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repo,
		SessionRepo: sessionRepo,
	})
}

func TestCreateUser_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	db := setupDB(t, "user_create")
	svc := newTestService(t, db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "  Dr.House@Example.COM ",
		Password: "lupus-is-never-it",
		Role:     domain.RoleDentist,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "dr.house@example.com" {
		t.Errorf("email: got %q, want normalized lowercase", user.Email)
	}
	if user.DisplayName != "dr.house" {
		t.Errorf("display name: got %q, want local part fallback", user.DisplayName)
	}
	if user.Status != "active" {
		t.Errorf("status: got %q, want active", user.Status)
	}

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "dr.house@example.com",
		Password: "another-password",
		Role:     domain.RoleDentist,
	})
	if err != domain.ErrUserExists {
		t.Fatalf("duplicate: got %v, want ErrUserExists", err)
	}
}

func TestCreateUser_ValidatesInput(t *testing.T) {
	db := setupDB(t, "user_validate")
	svc := newTestService(t, db)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "not-an-email",
		Password: "long-enough-pw",
		Role:     domain.RoleAssistant,
	}); err != domain.ErrInvalidCredentials {
		t.Errorf("bad email: got %v, want ErrInvalidCredentials", err)
	}

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "short@example.com",
		Password: "short",
		Role:     domain.RoleAssistant,
	}); err != domain.ErrInvalidCredentials {
		t.Errorf("short password: got %v, want ErrInvalidCredentials", err)
	}

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "rogue@example.com",
		Password: "long-enough-pw",
		Role:     domain.Role("janitor"),
	}); err != domain.ErrInvalidRole {
		t.Errorf("bad role: got %v, want ErrInvalidRole", err)
	}
}

func TestLogin_IssuesSessionAndAuthenticates(t *testing.T) {
	db := setupDB(t, "user_login")
	svc := newTestService(t, db)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "front.desk@example.com",
		Password: "reception-123",
		Role:     domain.RoleReceptionist,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "Front.Desk@example.com",
		Password: "reception-123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.RawToken == "" {
		t.Fatal("login returned empty token")
	}
	if result.User.ID != created.ID {
		t.Errorf("login user: got %v, want %v", result.User.ID, created.ID)
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Errorf("expiry %v is not in the future", result.ExpiresAt)
	}

	session, err := svc.Authenticate(ctx, result.RawToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != created.ID {
		t.Errorf("session user: got %v, want %v", session.UserID, created.ID)
	}

	// The raw token is never persisted, only its hash.
	var stored domain.Session
	if err := db.First(&stored, "id = ?", session.ID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if stored.SessionTokenHash == result.RawToken {
		t.Error("session stores the raw token instead of a hash")
	}
}

func TestLogin_RejectsBadCredentialsAndInactiveUsers(t *testing.T) {
	db := setupDB(t, "user_login_reject")
	svc := newTestService(t, db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "locked.out@example.com",
		Password: "correct-horse",
		Role:     domain.RoleDentist,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "locked.out@example.com",
		Password: "wrong-password",
	}); err != domain.ErrInvalidCredentials {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct-horse",
	}); err != domain.ErrInvalidCredentials {
		t.Errorf("unknown user: got %v, want ErrInvalidCredentials", err)
	}

	status := "inactive"
	if _, err := svc.Update(ctx, domain.UpdateUserRequest{ID: user.ID.String(), Status: &status}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "locked.out@example.com",
		Password: "correct-horse",
	}); err != domain.ErrUserInactive {
		t.Errorf("inactive user: got %v, want ErrUserInactive", err)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	db := setupDB(t, "user_logout")
	svc := newTestService(t, db)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "one.shift@example.com",
		Password: "evening-shift",
		Role:     domain.RoleAssistant,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "one.shift@example.com",
		Password: "evening-shift",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, result.RawToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.RawToken); err != domain.ErrSessionRevoked {
		t.Fatalf("after logout: got %v, want ErrSessionRevoked", err)
	}

	if err := svc.Logout(ctx, "no-such-token"); err != domain.ErrInvalidSession {
		t.Fatalf("unknown token: got %v, want ErrInvalidSession", err)
	}
}

func TestAuthenticate_RejectsExpiredSessions(t *testing.T) {
	db := setupDB(t, "user_expiry")
	svc := newTestService(t, db)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "night.owl@example.com",
		Password: "stays-too-late",
		Role:     domain.RoleDentist,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "night.owl@example.com",
		Password: "stays-too-late",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&domain.Session{}).
		Where("id = ?", result.SessionID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("age session: %v", err)
	}

	if _, err := svc.Authenticate(ctx, result.RawToken); err != domain.ErrSessionExpired {
		t.Fatalf("expired session: got %v, want ErrSessionExpired", err)
	}
}

func TestChangePassword_InvalidatesOldPassword(t *testing.T) {
	db := setupDB(t, "user_change_pw")
	svc := newTestService(t, db)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "rotates@example.com",
		Password: "original-pw",
		Role:     domain.RoleReceptionist,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID.String(), "tiny"); err != domain.ErrInvalidCredentials {
		t.Fatalf("short new password: got %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, user.ID.String(), "rotated-pw-99"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "rotates@example.com",
		Password: "original-pw",
	}); err != domain.ErrInvalidCredentials {
		t.Errorf("old password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "rotates@example.com",
		Password: "rotated-pw-99",
	}); err != nil {
		t.Errorf("new password: %v", err)
	}
}

func TestListAndUpdate_FiltersByRoleAndStatus(t *testing.T) {
	db := setupDB(t, "user_list")
	svc := newTestService(t, db)
	ctx := context.Background()

	seed := []struct {
		email string
		role  domain.Role
	}{
		{"dentist.a@example.com", domain.RoleDentist},
		{"dentist.b@example.com", domain.RoleDentist},
		{"desk@example.com", domain.RoleReceptionist},
	}
	var last *domain.User
	for _, s := range seed {
		u, err := svc.CreateUser(ctx, domain.CreateUserRequest{
			Email:    s.email,
			Password: "password-123",
			Role:     s.role,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", s.email, err)
		}
		last = u
	}

	dentists, err := svc.List(ctx, domain.ListUserRequest{Role: "dentist"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dentists) != 2 {
		t.Fatalf("dentists: got %d, want 2", len(dentists))
	}

	status := "inactive"
	if _, err := svc.Update(ctx, domain.UpdateUserRequest{ID: last.ID.String(), Status: &status}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := svc.List(ctx, domain.ListUserRequest{Status: "active"})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active users: got %d, want 2", len(active))
	}
}
