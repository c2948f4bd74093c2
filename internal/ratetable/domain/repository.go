package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ratecard/pkg/db/option"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, table *RateTable) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*RateTable, error)
	ListByScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, rateType string, opts ...option.QueryOption) ([]RateTable, error)
	ListActiveInScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, rateType string) ([]RateTable, error)
	ListCurrentInScope(ctx context.Context, db *gorm.DB, orgID snowflake.ID, rateType string, at time.Time) ([]RateTable, error)
	UpdateLifecycle(ctx context.Context, db *gorm.DB, table *RateTable) error
	UpdateVersionLinks(ctx context.Context, db *gorm.DB, table *RateTable) error
	DeleteDraft(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
}
