// Package domain contains core types for staff accounts and sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDentist      Role = "dentist"
	RoleAssistant    Role = "assistant"
	RoleReceptionist Role = "receptionist"
)

func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleDentist, RoleAssistant, RoleReceptionist:
		return true
	}
	return false
}

// User is a staff account. Users with role dentist or assistant are
// the practitioners appointments can be booked against.
type User struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	Email               string            `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash        *string           `gorm:"type:text" json:"-"`
	DisplayName         string            `gorm:"column:display_name;not null" json:"display_name"`
	Role                Role              `gorm:"column:role;not null" json:"role"`
	Specialty           string            `gorm:"column:specialty" json:"specialty,omitempty"`
	Status              string            `gorm:"column:status;not null;default:'active'" json:"status"`
	LastPasswordChanged *time.Time        `gorm:"column:last_password_changed" json:"-"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Session is a persisted login session. Only a hash of the bearer
// token is stored.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string { return "sessions" }
