package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	"github.com/smallbiznis/ratecard/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ratetabledomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, table *ratetabledomain.RateTable) error {
	return db.WithContext(ctx).Create(table).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ratetabledomain.RateTable, error) {
	var table ratetabledomain.RateTable
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &table, nil
}

func (r *repo) ListByScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, rateType string, opts ...option.QueryOption) ([]ratetabledomain.RateTable, error) {
	var items []ratetabledomain.RateTable
	stmt := db.WithContext(ctx).
		Model(&ratetabledomain.RateTable{}).
		Where("org_id = ? AND rate_type = ?", orgID, rateType)

	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveInScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, rateType string) ([]ratetabledomain.RateTable, error) {
	var items []ratetabledomain.RateTable
	err := db.WithContext(ctx).
		Where("org_id = ? AND rate_type = ? AND state = ?", orgID, rateType, ratetabledomain.StateActive).
		Order("effective_from ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCurrentInScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, rateType string, at time.Time) ([]ratetabledomain.RateTable, error) {
	var items []ratetabledomain.RateTable
	err := db.WithContext(ctx).
		Where("org_id = ? AND rate_type = ? AND state = ?", orgID, rateType, ratetabledomain.StateActive).
		Where("effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to >= ?", at).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateLifecycle persists only the fields a lifecycle transition may touch.
func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, table *ratetabledomain.RateTable) error {
	return db.WithContext(ctx).
		Model(&ratetabledomain.RateTable{}).
		Where("org_id = ? AND id = ?", table.OrgID, table.ID).
		Updates(map[string]interface{}{
			"state":          table.State,
			"effective_from": table.EffectiveFrom,
			"effective_to":   table.EffectiveTo,
			"updated_at":     table.UpdatedAt,
		}).Error
}

func (r *repo) UpdateVersionLinks(ctx context.Context, db *gorm.DB, table *ratetabledomain.RateTable) error {
	return db.WithContext(ctx).
		Model(&ratetabledomain.RateTable{}).
		Where("org_id = ? AND id = ?", table.OrgID, table.ID).
		Updates(map[string]interface{}{
			"previous_version_id": table.PreviousVersionID,
			"next_version_id":     table.NextVersionID,
			"updated_at":          table.UpdatedAt,
		}).Error
}

// DeleteDraft removes a draft schedule. Version links on neighbours are
// weak references and are intentionally left untouched.
func (r *repo) DeleteDraft(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Where("org_id = ? AND id = ? AND state = ?", orgID, id, ratetabledomain.StateDraft).
		Delete(&ratetabledomain.RateTable{})
	return res.RowsAffected, res.Error
}
