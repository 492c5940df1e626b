// Package seed bootstraps the records a fresh installation needs
// before anyone can log in.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/dentora/dentora/internal/config"
	userdomain "github.com/dentora/dentora/internal/user/domain"
	"github.com/dentora/dentora/internal/user/password"
)

const defaultAdminDisplay = "Dentora Admin"

// EnsureAdmin creates the bootstrap admin user when one does not exist
// yet. It is a no-op when BOOTSTRAP_ADMIN_PASSWORD is unset, so
// deployments that provision staff another way pay nothing for it.
func EnsureAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.BootstrapAdminPassword == "" || cfg.BootstrapAdminEmail == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing userdomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := password.Hash(cfg.BootstrapAdminPassword)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		admin := userdomain.User{
			ID:           node.Generate(),
			Email:        email,
			PasswordHash: &hashed,
			DisplayName:  defaultAdminDisplay,
			Role:         userdomain.RoleAdmin,
			Status:       "active",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&admin).Error
	})
}
