// Package sequence issues gapless per-period document numbers.
//
// Numbers look like A2025060001 or INV2025060012: a scope prefix, the
// YYYYMM period of issuance, and a counter that restarts at 0001 each
// month. Counters live in the sequences table and are advanced inside
// the caller's transaction so a rolled-back document never burns a
// number that a later document silently skips.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dentora/dentora/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Scope string

const (
	ScopeAppointment Scope = "appointment"
	ScopeInvoice     Scope = "invoice"
	ScopePayment     Scope = "payment"
)

var scopePrefixes = map[Scope]string{
	ScopeAppointment: "A",
	ScopeInvoice:     "INV",
	ScopePayment:     "PAY",
}

var ErrUnknownScope = errors.New("unknown_sequence_scope")

type Service interface {
	// Next advances the counter for scope in the period containing at
	// and returns the formatted document number. It must be called
	// inside the transaction that creates the document.
	Next(ctx context.Context, tx *gorm.DB, scope Scope, at time.Time) (string, error)
}

type Params struct {
	fx.In

	Log *zap.Logger
}

type service struct {
	log *zap.Logger
}

func NewService(p Params) Service {
	return &service{log: p.Log.Named("sequence.service")}
}

func (s *service) Next(ctx context.Context, tx *gorm.DB, scope Scope, at time.Time) (string, error) {
	prefix, ok := scopePrefixes[scope]
	if !ok {
		return "", ErrUnknownScope
	}
	period := at.UTC().Format("200601")

	value, err := s.advance(ctx, tx, string(scope), period)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%04d", prefix, period, value), nil
}

// advance bumps the (scope, period) counter with an UPDATE-first upsert.
// The UPDATE takes a row lock, serializing concurrent issuers on the
// same counter; the INSERT path only runs the first time a period is
// seen, and a duplicate-key error there means another transaction won
// the race, so the UPDATE is retried.
func (s *service) advance(ctx context.Context, tx *gorm.DB, scope string, period string) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE sequences SET last_value = last_value + 1 WHERE scope = ? AND period = ?`,
		scope, period,
	)
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO sequences (scope, period, last_value) VALUES (?, ?, 1)`,
			scope, period,
		).Error
		if err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return 0, err
			}
			res = tx.WithContext(ctx).Exec(
				`UPDATE sequences SET last_value = last_value + 1 WHERE scope = ? AND period = ?`,
				scope, period,
			)
			if res.Error != nil {
				return 0, res.Error
			}
		} else {
			return 1, nil
		}
	}

	var row struct {
		LastValue int64 `gorm:"column:last_value"`
	}
	if err := tx.WithContext(ctx).Raw(
		`SELECT last_value FROM sequences WHERE scope = ? AND period = ?`,
		scope, period,
	).Scan(&row).Error; err != nil {
		return 0, err
	}
	if row.LastValue <= 0 {
		return 0, fmt.Errorf("sequence %s/%s returned non-positive value", scope, period)
	}
	return row.LastValue, nil
}

// Period extracts the YYYYMM period embedded in a document number, or
// "" when the number does not carry one.
func Period(number string) string {
	trimmed := strings.TrimLeftFunc(strings.TrimSpace(number), func(r rune) bool {
		return r >= 'A' && r <= 'Z'
	})
	if len(trimmed) < 6 {
		return ""
	}
	return trimmed[:6]
}
