package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Table      string `toml:"table"`
	UpdateFunc string `toml:"update_func"`

	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`

	HassURL   string `toml:"hass_url"`
	HassToken string `toml:"hass_token"`

	RetryInterval string `toml:"retry_interval"`
	DialTimeout   string `toml:"dial_timeout"`
	MaxFrameBytes int    `toml:"max_frame_bytes"`
	Compress      *bool  `toml:"compress"`
	MetricsAddr   string `toml:"metrics_addr"`
	Debug         *bool  `toml:"debug"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.tickship/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tickship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct,
// respecting flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setString("user", fc.User, &cfg.User)
	s.setString("password", fc.Password, &cfg.Password)
	s.setString("table", fc.Table, &cfg.Table)
	s.setString("update-func", fc.UpdateFunc, &cfg.UpdateFunc)

	s.setStringSlice("include", fc.Include, &cfg.Include)
	s.setStringSlice("exclude", fc.Exclude, &cfg.Exclude)

	s.setString("hass-url", fc.HassURL, &cfg.HassURL)
	s.setString("hass-token", fc.HassToken, &cfg.HassToken)

	if err := s.setDuration("retry-interval", fc.RetryInterval, &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	s.setInt("max-frame-bytes", fc.MaxFrameBytes, &cfg.MaxFrameBytes)

	s.setBool("compress", fc.Compress, &cfg.Compress)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setBool("debug", fc.Debug, &cfg.Debug)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
