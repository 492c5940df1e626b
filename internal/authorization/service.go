package authorization

import (
	"context"
	"errors"
)

// Service answers "may this actor perform this action on this object".
// Decisions are enforced at the HTTP layer; denied checks are audited.
type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
