package migration

import (
	"github.com/smallbiznis/ratecard/internal/config"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		// sqlite/mysql development setups use gorm's schema sync instead
		// of versioned SQL migrations.
		return conn.AutoMigrate(&ratetabledomain.RateTable{})
	}),
)
