package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/tickship/tickship/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != DefaultHost {
		t.Errorf("Host = %v, want %v", cfg.Host, DefaultHost)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %v, want %v", cfg.Port, DefaultPort)
	}
	if cfg.Table != DefaultTable {
		t.Errorf("Table = %v, want %v", cfg.Table, DefaultTable)
	}
	if cfg.UpdateFunc != DefaultUpdateFunc {
		t.Errorf("UpdateFunc = %v, want %v", cfg.UpdateFunc, DefaultUpdateFunc)
	}
	if cfg.RetryInterval != 60*time.Second {
		t.Errorf("RetryInterval = %v, want 60s", cfg.RetryInterval)
	}
	if cfg.MaxFrameBytes != 64<<20 {
		t.Errorf("MaxFrameBytes = %v, want 64MB", cfg.MaxFrameBytes)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.HassToken = "token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults with token", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"missing table", func(c *Config) { c.Table = "" }, true},
		{"missing update func", func(c *Config) { c.UpdateFunc = "" }, true},
		{"missing hass url", func(c *Config) { c.HassURL = "" }, true},
		{"hass url not websocket", func(c *Config) { c.HassURL = "http://localhost:8123" }, true},
		{"secure websocket accepted", func(c *Config) { c.HassURL = "wss://ha.example:8123/api/websocket" }, false},
		{"missing token", func(c *Config) { c.HassToken = "" }, true},
		{"zero retry interval", func(c *Config) { c.RetryInterval = 0 }, true},
		{"zero max frame", func(c *Config) { c.MaxFrameBytes = 0 }, true},
	}

	for _, tt := range tests {
		cfg := valid()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("%s: Validate() error = %v, want ErrInvalidConfig", tt.name, err)
			}
		} else if err != nil {
			t.Errorf("%s: Validate() error = %v", tt.name, err)
		}
	}
}
