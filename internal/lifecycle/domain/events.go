package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

var (
	EventActivated  EventType = "rate_table.activated"
	EventSuperseded EventType = "rate_table.superseded"
	EventExpired    EventType = "rate_table.expired"
)

// Event describes one lifecycle transition, published after the
// transaction that performed it commits.
type Event struct {
	Type         EventType    `json:"type"`
	OrgID        snowflake.ID `json:"organization_id"`
	RateType     string       `json:"rate_type"`
	RateTableID  snowflake.ID `json:"rate_table_id"`
	VersionLabel string       `json:"version_label"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// Notifier receives lifecycle events. Implementations must not block the
// transition path; failures are the subscriber's problem, not the caller's.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}
