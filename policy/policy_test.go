package policy

import (
	"errors"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	p := Default()

	if p.CacheEnabled {
		t.Error("CacheEnabled = true, want false")
	}
	if p.TTL != DefaultTTL {
		t.Errorf("TTL = %v, want %v", p.TTL, DefaultTTL)
	}
	if p.RetryMaxAttempts != 1 {
		t.Errorf("RetryMaxAttempts = %d, want 1", p.RetryMaxAttempts)
	}
	if p.RetryBackoff != 0 {
		t.Errorf("RetryBackoff = %v, want 0 for a single attempt", p.RetryBackoff)
	}
	if p.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", p.LogLevel)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	p := Policy{
		CacheEnabled:            true,
		TTL:                     time.Second,
		MaxEntries:              2,
		RetryMaxAttempts:        2,
		CircuitFailureThreshold: 3,
		LogLevel:                "debug",
	}.WithDefaults()

	if p.TTL != time.Second {
		t.Errorf("TTL = %v, want 1s", p.TTL)
	}
	if p.MaxEntries != 2 {
		t.Errorf("MaxEntries = %d, want 2", p.MaxEntries)
	}
	if p.RetryBackoff != DefaultRetryBackoff {
		t.Errorf("RetryBackoff = %v, want %v", p.RetryBackoff, DefaultRetryBackoff)
	}
	if p.CircuitFailureThreshold != 3 {
		t.Errorf("CircuitFailureThreshold = %d, want 3", p.CircuitFailureThreshold)
	}
	if p.CircuitOpenDuration != DefaultCircuitOpenDuration {
		t.Errorf("CircuitOpenDuration = %v, want %v", p.CircuitOpenDuration, DefaultCircuitOpenDuration)
	}
	if p.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", p.LogLevel)
	}
}

func TestCached(t *testing.T) {
	p := Cached(time.Minute, 10)

	if !p.CacheEnabled || p.TTL != time.Minute || p.MaxEntries != 10 {
		t.Errorf("Cached() = %+v", p)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name   string
		mutate func(*Policy)
		want   error
	}{
		{"valid", func(*Policy) {}, nil},
		{"cache without ttl", func(p *Policy) { p.CacheEnabled = true; p.TTL = 0 }, ErrInvalidTTL},
		{"cache without bound", func(p *Policy) { p.CacheEnabled = true; p.MaxEntries = 0 }, ErrInvalidMaxEntries},
		{"zero attempts", func(p *Policy) { p.RetryMaxAttempts = 0 }, ErrInvalidRetryAttempts},
		{"negative backoff", func(p *Policy) { p.RetryBackoff = -time.Second }, ErrInvalidRetryBackoff},
		{"zero threshold", func(p *Policy) { p.CircuitFailureThreshold = 0 }, ErrInvalidFailureThreshold},
		{"zero open duration", func(p *Policy) { p.CircuitOpenDuration = 0 }, ErrInvalidOpenDuration},
		{"unknown log level", func(p *Policy) { p.LogLevel = "trace" }, ErrInvalidLogLevel},
		{"negative timeout", func(p *Policy) { p.AttemptTimeout = -1 }, ErrInvalidAttemptTimeout},
		{"negative concurrency", func(p *Policy) { p.MaxConcurrent = -1 }, ErrInvalidMaxConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
