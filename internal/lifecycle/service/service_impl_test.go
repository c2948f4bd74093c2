package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ratecard/internal/clock"
	"github.com/smallbiznis/ratecard/internal/config"
	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	"github.com/smallbiznis/ratecard/internal/orgcontext"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	"github.com/smallbiznis/ratecard/internal/ratetable/repository"
	ratetableservice "github.com/smallbiznis/ratecard/internal/ratetable/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capturedEvents struct {
	events []lifecycledomain.Event
}

func (c *capturedEvents) Notify(_ context.Context, event lifecycledomain.Event) {
	c.events = append(c.events, event)
}

type testEnv struct {
	db     *gorm.DB
	svc    lifecycledomain.Service
	tables ratetabledomain.Service
	clock  *clock.FakeClock
	node   *snowflake.Node
	orgID  snowflake.ID
	ctx    context.Context
	events *capturedEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ratetabledomain.RateTable{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	events := &capturedEvents{}

	tables := ratetableservice.New(ratetableservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repo,
	})
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fake,
		Repo:      repo,
		Defaults:  config.NewStaticPricingDefaults(config.DefaultPricingDefaults()),
		Notifiers: []lifecycledomain.Notifier{events},
	})

	orgID := node.Generate()
	return &testEnv{
		db:     db,
		svc:    svc,
		tables: tables,
		clock:  fake,
		node:   node,
		orgID:  orgID,
		ctx:    orgcontext.WithOrgID(context.Background(), orgID),
		events: events,
	}
}

func (e *testEnv) date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (e *testEnv) createDraft(t *testing.T, from time.Time, to *time.Time) *ratetabledomain.Response {
	t.Helper()

	resp, err := e.tables.Create(e.ctx, ratetabledomain.CreateRequest{
		RateType:      "storage",
		Name:          "Storage rates",
		Currency:      "USD",
		EffectiveFrom: from,
		EffectiveTo:   to,
		UnitRates: map[string]decimal.Decimal{
			"standard_box": decimal.NewFromFloat(4.5),
		},
		UrgencyMultipliers: map[ratetabledomain.UrgencyTier]decimal.Decimal{
			ratetabledomain.UrgencyStandard: decimal.NewFromInt(1),
			ratetabledomain.UrgencyRush:     decimal.NewFromInt(2),
		},
		HandlingFee:   decimal.NewFromInt(5),
		MinimumCharge: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	require.Equal(t, ratetabledomain.StateDraft, resp.State)
	return resp
}

func TestActivateDraft(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	resp, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateActive, resp.State)

	current, err := env.svc.CurrentForScope(env.ctx, "storage", env.date(2026, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, draft.ID, current.ID.String())

	require.Len(t, env.events.events, 1)
	assert.Equal(t, lifecycledomain.EventActivated, env.events.events[0].Type)
}

func TestActivateDefaultsEffectiveFromToToday(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, time.Time{}, nil)

	resp, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, resp.EffectiveFrom.Equal(env.date(2026, 3, 15)), "effective_from = %s", resp.EffectiveFrom)
}

func TestActivateNonDraft(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	_, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.Activate(env.ctx, draft.ID)
	assert.ErrorIs(t, err, lifecycledomain.ErrInvalidState)
}

func TestActivateSupersedesOpenEndedPredecessor(t *testing.T) {
	env := newTestEnv(t)

	first := env.createDraft(t, env.date(2026, 1, 1), nil)
	_, err := env.svc.Activate(env.ctx, first.ID)
	require.NoError(t, err)

	second := env.createDraft(t, env.date(2026, 7, 1), nil)
	_, err = env.svc.Activate(env.ctx, second.ID)
	require.NoError(t, err)

	prior, err := env.tables.Get(env.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateSuperseded, prior.State)
	require.NotNil(t, prior.EffectiveTo)
	assert.True(t, prior.EffectiveTo.Equal(env.date(2026, 6, 30)), "effective_to = %s", prior.EffectiveTo)

	current, err := env.svc.CurrentForScope(env.ctx, "storage", env.date(2026, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID.String())
}

func TestActivateOverlapRejectedAndStatesUnchanged(t *testing.T) {
	env := newTestEnv(t)

	boundedTo := env.date(2026, 12, 31)
	first := env.createDraft(t, env.date(2026, 1, 1), &boundedTo)
	_, err := env.svc.Activate(env.ctx, first.ID)
	require.NoError(t, err)

	second := env.createDraft(t, env.date(2026, 6, 1), nil)
	_, err = env.svc.Activate(env.ctx, second.ID)
	assert.ErrorIs(t, err, lifecycledomain.ErrOverlap)

	prior, err := env.tables.Get(env.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateActive, prior.State)

	rejected, err := env.tables.Get(env.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateDraft, rejected.State)
}

func TestActivateRejectsInvalidSchedule(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.tables.Create(env.ctx, ratetabledomain.CreateRequest{
		RateType: "storage",
		Currency: "USD",
		UnitRates: map[string]decimal.Decimal{
			"standard_box": decimal.NewFromInt(-1),
		},
	})
	require.NoError(t, err)

	_, err = env.svc.Activate(env.ctx, resp.ID)
	assert.ErrorIs(t, err, ratetabledomain.ErrInvalidRate)
}

func TestSupersede(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	_, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)

	resp, err := env.svc.Supersede(env.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateSuperseded, resp.State)
	require.NotNil(t, resp.EffectiveTo)
	assert.True(t, resp.EffectiveTo.Equal(env.date(2026, 3, 15)), "effective_to = %s", resp.EffectiveTo)

	_, err = env.svc.CurrentForScope(env.ctx, "storage", env.date(2026, 2, 1))
	assert.ErrorIs(t, err, lifecycledomain.ErrNoActiveRate)
}

func TestSupersedeDraft(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	_, err := env.svc.Supersede(env.ctx, draft.ID)
	assert.ErrorIs(t, err, lifecycledomain.ErrInvalidState)
}

func TestExpire(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	_, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)

	resp, err := env.svc.Expire(env.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateExpired, resp.State)

	// Expiring again is a no-op, not an error.
	resp, err = env.svc.Expire(env.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateExpired, resp.State)
}

func TestExpireSuperseded(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	_, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)
	_, err = env.svc.Supersede(env.ctx, draft.ID)
	require.NoError(t, err)

	resp, err := env.svc.Expire(env.ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ratetabledomain.StateExpired, resp.State)
}

func TestExpireDraft(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t, env.date(2026, 1, 1), nil)

	_, err := env.svc.Expire(env.ctx, draft.ID)
	assert.ErrorIs(t, err, lifecycledomain.ErrInvalidState)
}

func TestCurrentForScopeWindowEdges(t *testing.T) {
	env := newTestEnv(t)

	to := env.date(2026, 6, 30)
	draft := env.createDraft(t, env.date(2026, 1, 1), &to)
	_, err := env.svc.Activate(env.ctx, draft.ID)
	require.NoError(t, err)

	// Inclusive on both ends.
	_, err = env.svc.CurrentForScope(env.ctx, "storage", env.date(2026, 1, 1))
	assert.NoError(t, err)
	_, err = env.svc.CurrentForScope(env.ctx, "storage", env.date(2026, 6, 30))
	assert.NoError(t, err)

	_, err = env.svc.CurrentForScope(env.ctx, "storage", env.date(2025, 12, 31))
	assert.ErrorIs(t, err, lifecycledomain.ErrNoActiveRate)
	_, err = env.svc.CurrentForScope(env.ctx, "storage", env.date(2026, 7, 1))
	assert.ErrorIs(t, err, lifecycledomain.ErrNoActiveRate)
}

func TestCurrentForScopeMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CurrentForScope(env.ctx, "storage", time.Time{})
	assert.ErrorIs(t, err, lifecycledomain.ErrNoActiveRate)
}

func TestLifecycleEventsPublished(t *testing.T) {
	env := newTestEnv(t)

	first := env.createDraft(t, env.date(2026, 1, 1), nil)
	_, err := env.svc.Activate(env.ctx, first.ID)
	require.NoError(t, err)

	second := env.createDraft(t, env.date(2026, 7, 1), nil)
	_, err = env.svc.Activate(env.ctx, second.ID)
	require.NoError(t, err)

	_, err = env.svc.Expire(env.ctx, second.ID)
	require.NoError(t, err)

	var types []lifecycledomain.EventType
	for _, event := range env.events.events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []lifecycledomain.EventType{
		lifecycledomain.EventActivated,
		lifecycledomain.EventSuperseded,
		lifecycledomain.EventActivated,
		lifecycledomain.EventExpired,
	}, types)
}

// Randomized transition sequences must never leave two active schedules
// with overlapping windows in one scope.
func TestRandomizedSequenceKeepsSingleActiveInvariant(t *testing.T) {
	env := newTestEnv(t)
	rng := rand.New(rand.NewSource(42))

	var ids []string
	for i := 0; i < 40; i++ {
		switch rng.Intn(3) {
		case 0:
			from := env.date(2026, 1, 1).AddDate(0, 0, rng.Intn(400))
			var to *time.Time
			if rng.Intn(2) == 0 {
				end := from.AddDate(0, 0, 1+rng.Intn(120))
				to = &end
			}
			draft := env.createDraft(t, from, to)
			ids = append(ids, draft.ID)
		case 1:
			if len(ids) == 0 {
				continue
			}
			_, err := env.svc.Activate(env.ctx, ids[rng.Intn(len(ids))])
			if err != nil {
				assert.True(t,
					errors.Is(err, lifecycledomain.ErrOverlap) || errors.Is(err, lifecycledomain.ErrInvalidState),
					"unexpected activate error: %v", err)
			}
		case 2:
			if len(ids) == 0 {
				continue
			}
			_, err := env.svc.Supersede(env.ctx, ids[rng.Intn(len(ids))])
			if err != nil {
				assert.ErrorIs(t, err, lifecycledomain.ErrInvalidState)
			}
		}

		assertNoOverlappingActives(t, env)
	}
}

func assertNoOverlappingActives(t *testing.T, env *testEnv) {
	t.Helper()

	var actives []ratetabledomain.RateTable
	err := env.db.
		Where("org_id = ? AND rate_type = ? AND state = ?", env.orgID, "storage", ratetabledomain.StateActive).
		Find(&actives).Error
	require.NoError(t, err)

	for i := range actives {
		for j := i + 1; j < len(actives); j++ {
			assert.False(t,
				actives[i].OverlapsWindow(actives[j].EffectiveFrom, actives[j].EffectiveTo),
				"schedules %s and %s both active with overlapping windows",
				actives[i].ID, actives[j].ID)
		}
	}
}
