package cliconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
host = "kdb.local"
port = 5010
table = "events"
update_func = ".u.upd"
include = ["sensor", "climate"]
exclude = ["sensor.noisy"]
hass_url = "ws://ha.local:8123/api/websocket"
hass_token = "secret"
retry_interval = "30s"
compress = true
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.Host != "kdb.local" || fc.Port != 5010 {
		t.Errorf("endpoint = %s:%d", fc.Host, fc.Port)
	}
	if !reflect.DeepEqual(fc.Include, []string{"sensor", "climate"}) {
		t.Errorf("Include = %v", fc.Include)
	}
	if fc.RetryInterval != "30s" {
		t.Errorf("RetryInterval = %q", fc.RetryInterval)
	}
	if fc.Compress == nil || !*fc.Compress {
		t.Error("Compress not parsed")
	}
	if fc.Debug != nil {
		t.Error("Debug should be nil when absent")
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFileConfig() accepted a missing file")
	}
	path := writeConfigFile(t, "host = [broken")
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("LoadFileConfig() accepted invalid TOML")
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{
		Host:          "kdb.local",
		Port:          5010,
		HassToken:     "secret",
		RetryInterval: "30s",
	}

	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.Host != "kdb.local" || cfg.Port != 5010 {
		t.Errorf("endpoint = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.RetryInterval != 30*time.Second {
		t.Errorf("RetryInterval = %v, want 30s", cfg.RetryInterval)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Table != DefaultTable {
		t.Errorf("Table = %v, want default", cfg.Table)
	}
}

func TestApplyFileConfig_FlagPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "from-flag"

	fc := FileConfig{Host: "from-file", Port: 9999}
	changed := map[string]bool{"host": true}

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.Host != "from-flag" {
		t.Errorf("Host = %v, flag value must win", cfg.Host)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %v, file value must apply", cfg.Port)
	}
}

func TestApplyFileConfig_BadDuration(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{RetryInterval: "not-a-duration"}
	if err := ApplyFileConfig(&cfg, fc, nil); err == nil {
		t.Error("ApplyFileConfig() accepted an invalid duration")
	}
}

func TestFileExists(t *testing.T) {
	path := writeConfigFile(t, "host = \"x\"\n")
	if !FileExists(path) {
		t.Error("FileExists() = false for existing file")
	}
	if FileExists(filepath.Join(t.TempDir(), "nope.toml")) {
		t.Error("FileExists() = true for missing file")
	}
}
