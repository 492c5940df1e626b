package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dentora/dentora/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyLogin   = "ratelimit:login:"
	keyBooking = "ratelimit:booking:"
	keyRunLock = "joblock:"
)

// Limiter throttles per-client request rates. A nil Limiter (redis not
// configured or limiting disabled) allows everything.
type Limiter struct {
	bucket *TokenBucket
	locker *Locker

	loginRate    float64
	loginBurst   int
	bookingRate  float64
	bookingBurst int
}

func NewLimiter(cfg config.Config) (*Limiter, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limiting requires REDIS_ADDR")
	}
	if cfg.LoginRate <= 0 || cfg.LoginBurst <= 0 || cfg.BookingRate <= 0 || cfg.BookingBurst <= 0 {
		return nil, errors.New("rate limit rates and bursts must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Limiter{
		bucket:       NewTokenBucket(client),
		locker:       NewLocker(client),
		loginRate:    cfg.LoginRate,
		loginBurst:   cfg.LoginBurst,
		bookingRate:  cfg.BookingRate,
		bookingBurst: cfg.BookingBurst,
	}, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowLogin gates credential attempts from one client address.
func (l *Limiter) AllowLogin(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyLogin+strings.TrimSpace(clientIP), l.loginRate, l.loginBurst)
}

// AllowBooking gates appointment creation and rescheduling.
func (l *Limiter) AllowBooking(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyBooking+strings.TrimSpace(clientIP), l.bookingRate, l.bookingBurst)
}

// TryRunLock takes a cross-replica lock for a named background job.
// When limiting is disabled the lock trivially succeeds, which is fine
// for single-instance deployments.
func (l *Limiter) TryRunLock(ctx context.Context, job string, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, keyRunLock+job, ttl)
}

func (l *Limiter) ReleaseRunLock(ctx context.Context, job, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, keyRunLock+job, token)
}
