package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ratecard/internal/cache"
	"github.com/smallbiznis/ratecard/internal/clock"
	"github.com/smallbiznis/ratecard/internal/config"
	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	"github.com/smallbiznis/ratecard/internal/orgcontext"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	ratetableservice "github.com/smallbiznis/ratecard/internal/ratetable/service"
	"github.com/smallbiznis/ratecard/internal/scopelock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      ratetabledomain.Repository
	Defaults  *config.PricingDefaultsHolder
	Locker    *scopelock.Locker          `optional:"true"`
	Notifiers []lifecycledomain.Notifier `group:"lifecycle_notifiers"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      ratetabledomain.Repository
	defaults  *config.PricingDefaultsHolder
	locker    *scopelock.Locker
	notifiers []lifecycledomain.Notifier

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex

	current cache.Cache[string, *ratetabledomain.RateTable]
}

func New(p Params) lifecycledomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("lifecycle.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		defaults:   p.Defaults,
		locker:     p.Locker,
		notifiers:  p.Notifiers,
		scopeLocks: make(map[string]*sync.Mutex),
		current:    cache.NewTTLCache[string, *ratetabledomain.RateTable](),
	}
}

// Activate promotes a draft to active. The prior open-ended active schedule
// for the scope, if any, is superseded with its window truncated to the day
// before the new effective date. Any other active schedule whose window
// intersects the new one is a hard conflict.
func (s *Service) Activate(ctx context.Context, id string) (*ratetabledomain.Response, error) {
	orgID, tableID, err := identifiers(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockScopeByID(ctx, orgID, tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		table  *ratetabledomain.RateTable
		events []lifecycledomain.Event
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err = s.repo.FindByID(ctx, tx, orgID, tableID)
		if err != nil {
			return err
		}
		if table == nil {
			return ratetabledomain.ErrNotFound
		}
		if table.State != ratetabledomain.StateDraft {
			return fmt.Errorf("%w: cannot activate a %s schedule", lifecycledomain.ErrInvalidState, table.State)
		}
		if err := table.Validate(); err != nil {
			return err
		}

		now := s.clock.Now()
		today := startOfDay(now)
		effectiveFrom := table.EffectiveFrom
		if effectiveFrom.IsZero() {
			effectiveFrom = today
		}

		actives, err := s.repo.ListActiveInScope(ctx, tx, orgID, table.RateType)
		if err != nil {
			return err
		}

		cut := effectiveFrom.AddDate(0, 0, -1)
		if table.EffectiveFrom.IsZero() {
			cut = today
		}

		for i := range actives {
			prior := &actives[i]
			if prior.ID == table.ID {
				continue
			}
			if prior.EffectiveTo == nil && prior.EffectiveFrom.Before(effectiveFrom) {
				// Truncatable predecessor: the normal supersession path.
				continue
			}
			if prior.OverlapsWindow(effectiveFrom, table.EffectiveTo) {
				return fmt.Errorf("%w: schedule %s (%s) is active for %s between %s and %s",
					lifecycledomain.ErrOverlap,
					prior.ID, prior.VersionLabel, prior.RateType,
					prior.EffectiveFrom.Format(time.DateOnly), formatEnd(prior.EffectiveTo))
			}
		}

		for i := range actives {
			prior := &actives[i]
			if prior.ID == table.ID {
				continue
			}
			prior.State = ratetabledomain.StateSuperseded
			if prior.EffectiveTo == nil || prior.EffectiveTo.After(cut) {
				priorCut := cut
				prior.EffectiveTo = &priorCut
			}
			prior.UpdatedAt = now
			if err := s.repo.UpdateLifecycle(ctx, tx, prior); err != nil {
				return err
			}
			events = append(events, s.event(lifecycledomain.EventSuperseded, prior, now))
		}

		table.State = ratetabledomain.StateActive
		table.EffectiveFrom = effectiveFrom
		table.UpdatedAt = now
		if err := s.repo.UpdateLifecycle(ctx, tx, table); err != nil {
			return err
		}
		events = append(events, s.event(lifecycledomain.EventActivated, table, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(orgID, table.RateType)
	s.publish(ctx, events)
	return ratetableservice.ToResponse(table), nil
}

// Supersede retires an active schedule without a successor. The expiry
// date is set to today when the schedule had none.
func (s *Service) Supersede(ctx context.Context, id string) (*ratetabledomain.Response, error) {
	orgID, tableID, err := identifiers(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockScopeByID(ctx, orgID, tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		table  *ratetabledomain.RateTable
		events []lifecycledomain.Event
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err = s.repo.FindByID(ctx, tx, orgID, tableID)
		if err != nil {
			return err
		}
		if table == nil {
			return ratetabledomain.ErrNotFound
		}
		if table.State != ratetabledomain.StateActive {
			return fmt.Errorf("%w: cannot supersede a %s schedule", lifecycledomain.ErrInvalidState, table.State)
		}

		now := s.clock.Now()
		table.State = ratetabledomain.StateSuperseded
		if table.EffectiveTo == nil {
			today := startOfDay(now)
			table.EffectiveTo = &today
		}
		table.UpdatedAt = now
		if err := s.repo.UpdateLifecycle(ctx, tx, table); err != nil {
			return err
		}
		events = append(events, s.event(lifecycledomain.EventSuperseded, table, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(orgID, table.RateType)
	s.publish(ctx, events)
	return ratetableservice.ToResponse(table), nil
}

// Expire terminates a schedule. Calling it on an already expired schedule
// is a no-op, not an error.
func (s *Service) Expire(ctx context.Context, id string) (*ratetabledomain.Response, error) {
	orgID, tableID, err := identifiers(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockScopeByID(ctx, orgID, tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		table  *ratetabledomain.RateTable
		events []lifecycledomain.Event
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err = s.repo.FindByID(ctx, tx, orgID, tableID)
		if err != nil {
			return err
		}
		if table == nil {
			return ratetabledomain.ErrNotFound
		}
		switch table.State {
		case ratetabledomain.StateExpired:
			return nil
		case ratetabledomain.StateActive, ratetabledomain.StateSuperseded:
		default:
			return fmt.Errorf("%w: cannot expire a %s schedule", lifecycledomain.ErrInvalidState, table.State)
		}

		now := s.clock.Now()
		table.State = ratetabledomain.StateExpired
		if table.EffectiveTo == nil {
			today := startOfDay(now)
			table.EffectiveTo = &today
		}
		table.UpdatedAt = now
		if err := s.repo.UpdateLifecycle(ctx, tx, table); err != nil {
			return err
		}
		events = append(events, s.event(lifecycledomain.EventExpired, table, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(orgID, table.RateType)
	s.publish(ctx, events)
	return ratetableservice.ToResponse(table), nil
}

// CurrentForScope resolves the single governing schedule for the scope at
// asOf. The overlap invariant guarantees uniqueness; it is still re-checked
// here because a violation means corrupted pricing data, not a lookup miss.
func (s *Service) CurrentForScope(ctx context.Context, rateType string, asOf time.Time) (*ratetabledomain.RateTable, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, ratetabledomain.ErrInvalidOrganization
	}
	rateType = strings.TrimSpace(rateType)
	if rateType == "" {
		return nil, ratetabledomain.ErrInvalidRateType
	}
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	key := scopeKey(orgID, rateType)
	if cached, ok := s.current.Get(key); ok && cached.WindowContains(asOf) {
		return cached, nil
	}

	items, err := s.repo.ListCurrentInScope(ctx, s.db, orgID, rateType, asOf)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("%w: no active schedule for %s as of %s",
			lifecycledomain.ErrNoActiveRate, rateType, asOf.Format(time.DateOnly))
	case 1:
	default:
		s.log.Error("overlap invariant violated",
			zap.String("org_id", orgID.String()),
			zap.String("rate_type", rateType),
			zap.Int("active_count", len(items)),
		)
		return nil, fmt.Errorf("%w: %d schedules active for %s as of %s",
			lifecycledomain.ErrOverlap, len(items), rateType, asOf.Format(time.DateOnly))
	}

	table := &items[0]
	s.current.Set(key, table, s.defaults.CurrentLookupTTL())
	return table, nil
}

func (s *Service) event(eventType lifecycledomain.EventType, table *ratetabledomain.RateTable, at time.Time) lifecycledomain.Event {
	return lifecycledomain.Event{
		Type:         eventType,
		OrgID:        table.OrgID,
		RateType:     table.RateType,
		RateTableID:  table.ID,
		VersionLabel: table.VersionLabel,
		OccurredAt:   at,
	}
}

func (s *Service) publish(ctx context.Context, events []lifecycledomain.Event) {
	for _, event := range events {
		for _, notifier := range s.notifiers {
			notifier.Notify(ctx, event)
		}
	}
}

func (s *Service) invalidate(orgID snowflake.ID, rateType string) {
	s.current.Delete(scopeKey(orgID, rateType))
}

// lockScopeByID serializes transitions for the scope the table belongs to.
// The in-process mutex covers a single node; the Redis lock, when
// configured, extends the boundary across replicas.
func (s *Service) lockScopeByID(ctx context.Context, orgID, tableID snowflake.ID) (func(), error) {
	table, err := s.repo.FindByID(ctx, s.db, orgID, tableID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, ratetabledomain.ErrNotFound
	}

	key := scopeKey(orgID, table.RateType)

	s.mu.Lock()
	mu, ok := s.scopeLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.scopeLocks[key] = mu
	}
	s.mu.Unlock()

	mu.Lock()

	if s.locker == nil {
		return mu.Unlock, nil
	}

	ttl := s.defaults.ScopeLockTTL()
	var token string
	for attempt := 0; attempt < 3; attempt++ {
		var acquired bool
		token, acquired, err = s.locker.TryLock(ctx, "ratecard:scope:"+key, ttl)
		if err != nil {
			mu.Unlock()
			return nil, err
		}
		if acquired {
			return func() {
				_ = s.locker.Release(context.WithoutCancel(ctx), "ratecard:scope:"+key, token)
				mu.Unlock()
			}, nil
		}
		select {
		case <-ctx.Done():
			mu.Unlock()
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	mu.Unlock()
	return nil, fmt.Errorf("%w: scope %s is locked by another transition", lifecycledomain.ErrScopeBusy, key)
}

func identifiers(ctx context.Context, id string) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, 0, ratetabledomain.ErrInvalidOrganization
	}
	tableID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return 0, 0, ratetabledomain.ErrInvalidID
	}
	return orgID, tableID, nil
}

func scopeKey(orgID snowflake.ID, rateType string) string {
	return orgID.String() + "/" + rateType
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatEnd(t *time.Time) string {
	if t == nil {
		return "open-ended"
	}
	return t.Format(time.DateOnly)
}
