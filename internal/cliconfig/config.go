package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tickship/tickship/internal/domain"
)

// Defaults matching the deployed integration.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 2001
	DefaultTable      = "hass_event"
	DefaultUpdateFunc = ".u.updjson"
	DefaultHassURL    = "ws://localhost:8123/api/websocket"
)

// Config holds the full configuration surface of the bridge. It is consumed
// at construction; changing it requires rebuilding the bridge, not live
// mutation.
type Config struct {
	// Tickerplant endpoint and credentials.
	Host     string
	Port     int
	User     string
	Password string

	// Table is the host tag stamped on every envelope; UpdateFunc is the
	// remote function invoked per event.
	Table      string
	UpdateFunc string

	// Entity filter. Include entries are entity ids or domains (empty
	// matches all); Exclude entries are entity ids and win over Include.
	Include []string
	Exclude []string

	// Home Assistant websocket endpoint and long-lived access token.
	HassURL   string
	HassToken string

	// RetryInterval is the fixed pause between tickerplant reconnect
	// attempts.
	RetryInterval time.Duration

	// DialTimeout bounds the TCP connect to the tickerplant.
	DialTimeout time.Duration

	// MaxFrameBytes bounds inbound IPC frames.
	MaxFrameBytes int

	// Compress enables IPC compression for large outbound messages.
	Compress bool

	// MetricsAddr exposes Prometheus metrics when non-empty, e.g.
	// ":9120".
	MetricsAddr string

	// Debug enables debug-level logging.
	Debug bool
}

// DefaultConfig returns a Config with default values. At minimum, HassToken
// must be set before use.
func DefaultConfig() Config {
	return Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Table:         DefaultTable,
		UpdateFunc:    DefaultUpdateFunc,
		HassURL:       DefaultHassURL,
		RetryInterval: 60 * time.Second,
		DialTimeout:   10 * time.Second,
		MaxFrameBytes: 64 << 20,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", domain.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if c.Table == "" {
		return fmt.Errorf("%w: table is required", domain.ErrInvalidConfig)
	}
	if c.UpdateFunc == "" {
		return fmt.Errorf("%w: update function is required", domain.ErrInvalidConfig)
	}
	if c.HassURL == "" {
		return fmt.Errorf("%w: hass-url is required", domain.ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.HassURL, "ws://") && !strings.HasPrefix(c.HassURL, "wss://") {
		return fmt.Errorf("%w: hass-url must be a ws:// or wss:// endpoint", domain.ErrInvalidConfig)
	}
	if c.HassToken == "" {
		return fmt.Errorf("%w: hass-token is required", domain.ErrInvalidConfig)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("%w: max frame bytes must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence: a value is applied only when the corresponding flag has not
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setStringSlice(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setSliceFromString splits a comma-separated environment value.
func (s *configSetter) setSliceFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
