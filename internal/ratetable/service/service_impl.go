package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ratecard/internal/clock"
	"github.com/smallbiznis/ratecard/internal/orgcontext"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	"github.com/smallbiznis/ratecard/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func New(p Params) ratetabledomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ratetable.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Create validates and persists a new draft schedule. Drafts carry no
// lifecycle weight until activated, so validation here is the only gate.
func (s *Service) Create(ctx context.Context, req ratetabledomain.CreateRequest) (*ratetabledomain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, ratetabledomain.ErrInvalidOrganization
	}

	rateType := strings.TrimSpace(req.RateType)
	if rateType == "" {
		return nil, ratetabledomain.ErrInvalidRateType
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, ratetabledomain.ErrInvalidCurrency
	}

	versionLabel := strings.TrimSpace(req.VersionLabel)
	if versionLabel == "" {
		versionLabel = "1.0"
	}

	now := s.clock.Now()
	entity := &ratetabledomain.RateTable{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		RateType:      rateType,
		Name:          strings.TrimSpace(req.Name),
		VersionLabel:  versionLabel,
		Currency:      currency,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,

		UnitRates:          datatypes.NewJSONType(req.UnitRates),
		OverageRates:       datatypes.NewJSONType(req.OverageRates),
		VolumeTiers:        datatypes.NewJSONType(req.VolumeTiers),
		UrgencyMultipliers: datatypes.NewJSONType(req.UrgencyMultipliers),
		ModifierClasses:    datatypes.NewJSONType(req.ModifierClasses),

		FallbackCategory: strings.TrimSpace(req.FallbackCategory),
		HandlingFee:      req.HandlingFee,
		MinimumCharge:    req.MinimumCharge,

		State:     ratetabledomain.StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Metadata != nil {
		entity.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := entity.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		return nil, err
	}

	s.log.Info("rate table draft created",
		zap.String("rate_table_id", entity.ID.String()),
		zap.String("rate_type", entity.RateType),
		zap.String("version", entity.VersionLabel),
	)

	return ToResponse(entity), nil
}

func (s *Service) Get(ctx context.Context, id string) (*ratetabledomain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, ratetabledomain.ErrInvalidOrganization
	}

	tableID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, ratetabledomain.ErrInvalidID
	}

	entity, err := s.repo.FindByID(ctx, s.db, orgID, tableID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, ratetabledomain.ErrNotFound
	}

	return ToResponse(entity), nil
}

func (s *Service) List(ctx context.Context, rateType string) ([]ratetabledomain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, ratetabledomain.ErrInvalidOrganization
	}
	rateType = strings.TrimSpace(rateType)
	if rateType == "" {
		return nil, ratetabledomain.ErrInvalidRateType
	}

	items, err := s.repo.ListByScope(ctx, s.db, orgID, rateType,
		option.WithOrderBy("effective_from DESC, id DESC"))
	if err != nil {
		return nil, err
	}

	resp := make([]ratetabledomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *ToResponse(&items[i]))
	}
	return resp, nil
}

// DiscardDraft hard-deletes a draft. Any other state is refused; activated
// history is immutable.
func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return ratetabledomain.ErrInvalidOrganization
	}

	tableID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return ratetabledomain.ErrInvalidID
	}

	affected, err := s.repo.DeleteDraft(ctx, s.db, orgID, tableID)
	if err != nil {
		return err
	}
	if affected == 0 {
		entity, err := s.repo.FindByID(ctx, s.db, orgID, tableID)
		if err != nil {
			return err
		}
		if entity == nil {
			return ratetabledomain.ErrNotFound
		}
		return ratetabledomain.ErrNotDraft
	}

	s.log.Info("rate table draft discarded", zap.String("rate_table_id", tableID.String()))
	return nil
}

// ToResponse maps the persistence model to the API shape.
func ToResponse(t *ratetabledomain.RateTable) *ratetabledomain.Response {
	resp := &ratetabledomain.Response{
		ID:             t.ID.String(),
		OrganizationID: t.OrgID.String(),
		RateType:       t.RateType,
		Name:           t.Name,
		VersionLabel:   t.VersionLabel,
		Currency:       t.Currency,
		EffectiveFrom:  t.EffectiveFrom,
		EffectiveTo:    t.EffectiveTo,

		UnitRates:          t.UnitRates.Data(),
		OverageRates:       t.OverageRates.Data(),
		VolumeTiers:        t.VolumeTiers.Data(),
		UrgencyMultipliers: t.UrgencyMultipliers.Data(),
		ModifierClasses:    t.ModifierClasses.Data(),

		FallbackCategory: t.FallbackCategory,
		HandlingFee:      t.HandlingFee,
		MinimumCharge:    t.MinimumCharge,

		State:     t.State,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.PreviousVersionID != nil {
		prev := t.PreviousVersionID.String()
		resp.PreviousVersionID = &prev
	}
	if t.NextVersionID != nil {
		next := t.NextVersionID.String()
		resp.NextVersionID = &next
	}
	return resp
}
