package goSession

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "default valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "unbuffered queue valid",
			mutate: func(c *Config) {
				c.Controller.QueueSize = 0
			},
			wantValid: true,
		},
		{
			name: "negative queue invalid",
			mutate: func(c *Config) {
				c.Controller.QueueSize = -1
			},
			wantValid: false,
		},
		{
			name: "huge queue invalid",
			mutate: func(c *Config) {
				c.Controller.QueueSize = 1 << 20
			},
			wantValid: false,
		},
		{
			name: "negative call timeout invalid",
			mutate: func(c *Config) {
				c.Controller.CallTimeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "negative email bound invalid",
			mutate: func(c *Config) {
				c.Validation.MaxEmailBytes = -1
			},
			wantValid: false,
		},
		{
			name: "negative password bound invalid",
			mutate: func(c *Config) {
				c.Validation.MaxPasswordBytes = -1
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "audit disabled without buffer valid",
			mutate: func(c *Config) {
				c.Audit.Enabled = false
				c.Audit.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name: "latency without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Controller.QueueSize != 16 {
		t.Fatalf("expected queue size 16, got %d", cfg.Controller.QueueSize)
	}
	if cfg.Controller.CallTimeout != 0 {
		t.Fatalf("expected no call timeout by default, got %v", cfg.Controller.CallTimeout)
	}
	if !cfg.Audit.MaskEmail || cfg.Audit.Enabled {
		t.Fatalf("unexpected audit defaults %+v", cfg.Audit)
	}
}
