package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingDefaults are operator-tunable knobs for the pricing engine that
// are not part of any rate schedule.
type PricingDefaults struct {
	DefaultCurrency  string `mapstructure:"defaultCurrency"`
	FallbackCategory string `mapstructure:"fallbackCategory"`
	CurrentTTL       int    `mapstructure:"currentTtlSeconds"`
	ScopeLockTTL     int    `mapstructure:"scopeLockTtlSeconds"`
}

func DefaultPricingDefaults() PricingDefaults {
	return PricingDefaults{
		DefaultCurrency:  "USD",
		FallbackCategory: "standard_box",
		CurrentTTL:       30,
		ScopeLockTTL:     5,
	}
}

type PricingDefaultsHolder struct {
	current atomic.Value // holds PricingDefaults
}

// NewPricingDefaultsHolder reads pricing.yml (if present) and hot-reloads
// it on change; invalid updates are ignored, the last good config stays.
func NewPricingDefaultsHolder() (*PricingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/ratecard/config")
	v.AddConfigPath("/etc/ratecard")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RATECARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingDefaults()
	v.SetDefault("pricing.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("pricing.fallbackCategory", defaults.FallbackCategory)
	v.SetDefault("pricing.currentTtlSeconds", defaults.CurrentTTL)
	v.SetDefault("pricing.scopeLockTtlSeconds", defaults.ScopeLockTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PricingDefaults
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &PricingDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingDefaults
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingDefaults(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingDefaults returns a holder pinned to cfg with no file
// watching. Intended for tests.
func NewStaticPricingDefaults(cfg PricingDefaults) *PricingDefaultsHolder {
	holder := &PricingDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingDefaultsHolder) Get() PricingDefaults {
	return h.current.Load().(PricingDefaults)
}

// CurrentLookupTTL returns the memoization window for current-schedule
// lookups.
func (h *PricingDefaultsHolder) CurrentLookupTTL() time.Duration {
	return time.Duration(h.Get().CurrentTTL) * time.Second
}

// ScopeLockTTL returns the distributed lock lease for lifecycle
// transitions.
func (h *PricingDefaultsHolder) ScopeLockTTL() time.Duration {
	return time.Duration(h.Get().ScopeLockTTL) * time.Second
}

func validatePricingDefaults(cfg PricingDefaults) error {
	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		return errors.New("pricing.defaultCurrency cannot be empty")
	}
	if cfg.CurrentTTL < 0 {
		return errors.New("pricing.currentTtlSeconds cannot be negative")
	}
	if cfg.ScopeLockTTL <= 0 {
		return errors.New("pricing.scopeLockTtlSeconds must be positive")
	}
	return nil
}
