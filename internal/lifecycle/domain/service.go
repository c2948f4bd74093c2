// Package domain defines the lifecycle contract for rate schedules:
// draft -> active -> superseded/expired, with at most one active schedule
// per (org, rate type) scope for any point in time.
package domain

import (
	"context"
	"errors"
	"time"

	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
)

type Service interface {
	// Activate promotes a draft to active, superseding the prior active
	// schedule in the same scope when its window can be truncated cleanly.
	Activate(ctx context.Context, id string) (*ratetabledomain.Response, error)

	// Supersede retires an active schedule without a successor.
	Supersede(ctx context.Context, id string) (*ratetabledomain.Response, error)

	// Expire terminates an active or superseded schedule. Expiring an
	// already expired schedule is a no-op.
	Expire(ctx context.Context, id string) (*ratetabledomain.Response, error)

	// CurrentForScope resolves the single schedule that governs the scope
	// at the given instant. This is the only lookup pricing may use.
	CurrentForScope(ctx context.Context, rateType string, asOf time.Time) (*ratetabledomain.RateTable, error)
}

var (
	ErrOverlap      = errors.New("overlapping_schedule")
	ErrInvalidState = errors.New("invalid_state")
	ErrNoActiveRate = errors.New("no_active_rate")
	ErrScopeBusy    = errors.New("scope_busy")
)
