package scopelock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ratecard/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scopelock",
	fx.Provide(Provide),
)

// Provide builds the distributed locker when Redis is configured; a nil
// locker means transitions rely on the in-process mutex only.
func Provide(cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewLocker(client)
}
