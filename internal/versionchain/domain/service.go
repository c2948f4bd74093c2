// Package domain defines version navigation across successive rate
// schedules for one scope. Links are weak references used for audit and
// for deriving new drafts; pricing never reads them.
package domain

import (
	"context"
	"errors"
	"iter"

	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
)

type Service interface {
	// NewVersionFrom derives a fresh draft from an existing schedule,
	// bumping the minor version and linking both directions. The source
	// schedule's state is untouched.
	NewVersionFrom(ctx context.Context, id string) (*ratetabledomain.Response, error)

	// HistoryForScope yields schedules for the scope ordered by effective
	// date descending. The sequence is lazy and restartable; each range
	// re-reads from the store.
	HistoryForScope(ctx context.Context, rateType string) iter.Seq2[*ratetabledomain.RateTable, error]
}

var (
	ErrAlreadyLinked = errors.New("version_already_linked")
)
