package service

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ratecard/internal/clock"
	"github.com/smallbiznis/ratecard/internal/orgcontext"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	ratetableservice "github.com/smallbiznis/ratecard/internal/ratetable/service"
	versionchaindomain "github.com/smallbiznis/ratecard/internal/versionchain/domain"
	"github.com/smallbiznis/ratecard/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const historyPageSize = 50

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  ratetabledomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  ratetabledomain.Repository
}

func New(p Params) versionchaindomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("versionchain.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) NewVersionFrom(ctx context.Context, id string) (*ratetabledomain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, ratetabledomain.ErrInvalidOrganization
	}
	sourceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, ratetabledomain.ErrInvalidID
	}

	source, err := s.repo.FindByID(ctx, s.db, orgID, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ratetabledomain.ErrNotFound
	}
	if source.NextVersionID != nil {
		return nil, fmt.Errorf("%w: schedule %s already has successor %s",
			versionchaindomain.ErrAlreadyLinked, source.ID, source.NextVersionID)
	}

	now := s.clock.Now()
	draft := &ratetabledomain.RateTable{
		ID:           s.genID.Generate(),
		OrgID:        source.OrgID,
		RateType:     source.RateType,
		Name:         source.Name,
		VersionLabel: bumpMinorVersion(source.VersionLabel),
		Currency:     source.Currency,

		UnitRates:          source.UnitRates,
		OverageRates:       source.OverageRates,
		VolumeTiers:        source.VolumeTiers,
		UrgencyMultipliers: source.UrgencyMultipliers,
		ModifierClasses:    source.ModifierClasses,

		FallbackCategory: source.FallbackCategory,
		HandlingFee:      source.HandlingFee,
		MinimumCharge:    source.MinimumCharge,

		State:     ratetabledomain.StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	prev := source.ID
	draft.PreviousVersionID = &prev

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, draft); err != nil {
			return err
		}
		next := draft.ID
		source.NextVersionID = &next
		source.UpdatedAt = now
		return s.repo.UpdateVersionLinks(ctx, tx, source)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rate table version derived",
		zap.String("source_id", source.ID.String()),
		zap.String("draft_id", draft.ID.String()),
		zap.String("version", draft.VersionLabel),
	)
	return ratetableservice.ToResponse(draft), nil
}

func (s *Service) HistoryForScope(ctx context.Context, rateType string) iter.Seq2[*ratetabledomain.RateTable, error] {
	return func(yield func(*ratetabledomain.RateTable, error) bool) {
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || orgID == 0 {
			yield(nil, ratetabledomain.ErrInvalidOrganization)
			return
		}
		rateType = strings.TrimSpace(rateType)
		if rateType == "" {
			yield(nil, ratetabledomain.ErrInvalidRateType)
			return
		}

		for offset := 0; ; offset += historyPageSize {
			page, err := s.repo.ListByScope(ctx, s.db, orgID, rateType,
				option.WithOrderBy("effective_from DESC, id DESC"),
				option.WithLimit(historyPageSize),
				option.WithOffset(offset),
			)
			if err != nil {
				yield(nil, err)
				return
			}
			for i := range page {
				if !yield(&page[i], nil) {
					return
				}
			}
			if len(page) < historyPageSize {
				return
			}
		}
	}
}

// bumpMinorVersion turns "1.1" into "1.2". Labels that do not parse as
// major.minor fall back to "1.0".
func bumpMinorVersion(label string) string {
	parts := strings.Split(strings.TrimSpace(label), ".")
	if len(parts) != 2 {
		return "1.0"
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return "1.0"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return "1.0"
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}
