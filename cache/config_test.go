package cache

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultMaxEntries != 1000 {
		t.Errorf("DefaultMaxEntries = %d, want 1000", cfg.DefaultMaxEntries)
	}
	if cfg.MaxTTL != 0 {
		t.Errorf("MaxTTL = %v, want 0 (no ceiling)", cfg.MaxTTL)
	}
	if cfg.CleanupInterval != 0 {
		t.Errorf("CleanupInterval = %v, want 0", cfg.CleanupInterval)
	}
}

func TestConfig_EffectiveTTL(t *testing.T) {
	tests := []struct {
		name   string
		maxTTL time.Duration
		ttl    time.Duration
		want   time.Duration
	}{
		{name: "within max", maxTTL: time.Hour, ttl: time.Minute, want: time.Minute},
		{name: "clamped to max", maxTTL: time.Hour, ttl: 2 * time.Hour, want: time.Hour},
		{name: "no max", maxTTL: 0, ttl: 48 * time.Hour, want: 48 * time.Hour},
		{name: "zero ttl", maxTTL: time.Hour, ttl: 0, want: 0},
		{name: "negative ttl", maxTTL: time.Hour, ttl: -time.Second, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{MaxTTL: tt.maxTTL}
			if got := cfg.EffectiveTTL(tt.ttl); got != tt.want {
				t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.ttl, got, tt.want)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.DefaultMaxEntries != 1000 {
		t.Errorf("DefaultMaxEntries = %d, want 1000", cfg.DefaultMaxEntries)
	}

	cfg = Config{DefaultMaxEntries: 7}.withDefaults()
	if cfg.DefaultMaxEntries != 7 {
		t.Errorf("DefaultMaxEntries = %d, want 7", cfg.DefaultMaxEntries)
	}
}
