package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (TICKSHIP_*). Values override the config file but lose to flags that were
// explicitly set (changed map). Returns an error if any variable has an
// invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv("TICKSHIP_HOST"), &cfg.Host)
	if err := s.setIntFromString("port", os.Getenv("TICKSHIP_PORT"), &cfg.Port); err != nil {
		return err
	}
	s.setString("user", os.Getenv("TICKSHIP_USER"), &cfg.User)
	s.setString("password", os.Getenv("TICKSHIP_PASSWORD"), &cfg.Password)
	s.setString("table", os.Getenv("TICKSHIP_TABLE"), &cfg.Table)
	s.setString("update-func", os.Getenv("TICKSHIP_UPDATE_FUNC"), &cfg.UpdateFunc)

	s.setSliceFromString("include", os.Getenv("TICKSHIP_INCLUDE"), &cfg.Include)
	s.setSliceFromString("exclude", os.Getenv("TICKSHIP_EXCLUDE"), &cfg.Exclude)

	s.setString("hass-url", os.Getenv("TICKSHIP_HASS_URL"), &cfg.HassURL)
	s.setString("hass-token", os.Getenv("TICKSHIP_HASS_TOKEN"), &cfg.HassToken)

	if err := s.setDuration("retry-interval", os.Getenv("TICKSHIP_RETRY_INTERVAL"), &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("TICKSHIP_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("max-frame-bytes", os.Getenv("TICKSHIP_MAX_FRAME_BYTES"), &cfg.MaxFrameBytes); err != nil {
		return err
	}

	s.setBoolFromString("compress", os.Getenv("TICKSHIP_COMPRESS"), &cfg.Compress)
	s.setString("metrics-addr", os.Getenv("TICKSHIP_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setBoolFromString("debug", os.Getenv("TICKSHIP_DEBUG"), &cfg.Debug)

	return nil
}
