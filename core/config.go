package core

import (
	"fmt"
	"strings"
	"time"
)

type ReconcileConfig struct {
	Interval           time.Duration `koanf:"interval" mapstructure:"interval"`
	FreshnessThreshold time.Duration `koanf:"freshness_threshold" mapstructure:"freshness_threshold"`
	BatchSize          int           `koanf:"batch_size" mapstructure:"batch_size"`
	BackoffInitial     time.Duration `koanf:"backoff_initial" mapstructure:"backoff_initial"`
	BackoffMax         time.Duration `koanf:"backoff_max" mapstructure:"backoff_max"`
	// AuthorizingTimeout is how long an authorizing record may wait for its
	// callback before a sweep abandons it to unlinked.
	AuthorizingTimeout time.Duration `koanf:"authorizing_timeout" mapstructure:"authorizing_timeout"`
}

type Config struct {
	ServiceName         string          `koanf:"service_name" mapstructure:"service_name"`
	CallbackURL         string          `koanf:"callback_url" mapstructure:"callback_url"`
	PendingAuthTTL      time.Duration   `koanf:"pending_auth_ttl" mapstructure:"pending_auth_ttl"`
	RemoteRevokeTimeout time.Duration   `koanf:"remote_revoke_timeout" mapstructure:"remote_revoke_timeout"`
	Reconcile           ReconcileConfig `koanf:"reconcile" mapstructure:"reconcile"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:         "linking",
		PendingAuthTTL:      DefaultPendingAuthTTL,
		RemoteRevokeTimeout: 5 * time.Second,
		Reconcile: ReconcileConfig{
			Interval:           5 * time.Minute,
			FreshnessThreshold: 30 * time.Minute,
			BatchSize:          100,
			BackoffInitial:     30 * time.Second,
			BackoffMax:         15 * time.Minute,
			AuthorizingTimeout: DefaultPendingAuthTTL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.PendingAuthTTL < 0 {
		return fmt.Errorf("core: pending_auth_ttl must not be negative")
	}
	if c.Reconcile.Interval < 0 || c.Reconcile.FreshnessThreshold < 0 || c.Reconcile.AuthorizingTimeout < 0 {
		return fmt.Errorf("core: reconcile intervals must not be negative")
	}
	if c.Reconcile.BackoffMax > 0 && c.Reconcile.BackoffInitial > c.Reconcile.BackoffMax {
		return fmt.Errorf("core: reconcile backoff_initial exceeds backoff_max")
	}
	return nil
}
