package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	ChangePassword(ctx context.Context, userID string, newPassword string) error
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, req ListUserRequest) ([]User, error)
	Update(ctx context.Context, req UpdateUserRequest) (*User, error)
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        Role
	Specialty   string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}

type ListUserRequest struct {
	Role   string
	Status string
}

type ListUserFilter struct {
	Role   string
	Status string
}

type UpdateUserRequest struct {
	ID          string
	DisplayName *string
	Role        *Role
	Specialty   *string
	Status      *string
}
