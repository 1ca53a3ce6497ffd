package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (CANARY_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("heartbeat-file", os.Getenv("CANARY_HEARTBEAT_FILE"), &cfg.HeartbeatFile)
	s.setString("listen", os.Getenv("CANARY_LISTEN"), &cfg.Listen)
	s.setString("log-level", os.Getenv("CANARY_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("CANARY_LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("timeout", os.Getenv("CANARY_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("wake-interval", os.Getenv("CANARY_WAKE_INTERVAL"), &cfg.WakeInterval); err != nil {
		return err
	}
	if err := s.setDuration("grace", os.Getenv("CANARY_GRACE"), &cfg.Grace); err != nil {
		return err
	}

	if err := s.setBoolFromString("terminate", os.Getenv("CANARY_TERMINATE"), &cfg.Terminate); err != nil {
		return err
	}
	if err := s.setBoolFromString("report", os.Getenv("CANARY_REPORT"), &cfg.Report); err != nil {
		return err
	}
	if err := s.setBoolFromString("repeat-report", os.Getenv("CANARY_REPEAT_REPORT"), &cfg.RepeatReport); err != nil {
		return err
	}

	return nil
}
