package cliconfig

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("TICKSHIP_HOST", "kdb.env")
	t.Setenv("TICKSHIP_PORT", "5011")
	t.Setenv("TICKSHIP_INCLUDE", "sensor, light.porch")
	t.Setenv("TICKSHIP_RETRY_INTERVAL", "45s")
	t.Setenv("TICKSHIP_COMPRESS", "true")
	t.Setenv("TICKSHIP_HASS_TOKEN", "env-token")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}

	if cfg.Host != "kdb.env" {
		t.Errorf("Host = %v", cfg.Host)
	}
	if cfg.Port != 5011 {
		t.Errorf("Port = %v", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.Include, []string{"sensor", "light.porch"}) {
		t.Errorf("Include = %v", cfg.Include)
	}
	if cfg.RetryInterval != 45*time.Second {
		t.Errorf("RetryInterval = %v", cfg.RetryInterval)
	}
	if !cfg.Compress {
		t.Error("Compress not applied")
	}
	if cfg.HassToken != "env-token" {
		t.Errorf("HassToken = %v", cfg.HassToken)
	}
}

func TestApplyEnvConfig_FlagPrecedence(t *testing.T) {
	t.Setenv("TICKSHIP_HOST", "kdb.env")

	cfg := DefaultConfig()
	cfg.Host = "from-flag"
	if err := ApplyEnvConfig(&cfg, map[string]bool{"host": true}); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}
	if cfg.Host != "from-flag" {
		t.Errorf("Host = %v, flag value must win", cfg.Host)
	}
}

func TestApplyEnvConfig_BadValues(t *testing.T) {
	t.Setenv("TICKSHIP_PORT", "not-a-number")
	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("ApplyEnvConfig() accepted an invalid port")
	}

	t.Setenv("TICKSHIP_PORT", "")
	t.Setenv("TICKSHIP_RETRY_INTERVAL", "soon")
	cfg = DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("ApplyEnvConfig() accepted an invalid duration")
	}
}
