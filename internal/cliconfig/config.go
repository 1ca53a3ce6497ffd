package cliconfig

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// Config holds CLI configuration for canary.
type Config struct {
	Timeout      time.Duration
	Terminate    bool
	Report       bool
	RepeatReport bool
	WakeInterval time.Duration

	// Grace is how long the supervised child gets between SIGTERM and SIGKILL.
	Grace time.Duration

	HeartbeatFile string
	Listen        string

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		Terminate:    true,
		Report:       true,
		WakeInterval: watchdog.MaxWakeInterval,
		Grace:        5 * time.Second,
		LogLevel:     "info",
		LogFormat:    log.FormatConsole,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.WakeInterval < 0 {
		return fmt.Errorf("wake interval must not be negative")
	}
	if c.Grace < 0 {
		return fmt.Errorf("grace must not be negative")
	}
	if c.RepeatReport && !c.Report {
		return errors.New("repeat-report requires report")
	}

	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != log.FormatConsole && c.LogFormat != log.FormatJSON {
		return fmt.Errorf("log format must be %q or %q; got %q", log.FormatConsole, log.FormatJSON, c.LogFormat)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// WatchdogConfig converts c into a watchdog configuration.
func (c Config) WatchdogConfig() watchdog.Config {
	return watchdog.Config{
		Timeout:      c.Timeout,
		Terminate:    c.Terminate,
		Report:       c.Report,
		RepeatReport: c.RepeatReport,
		WakeInterval: c.WakeInterval,
	}
}

// NewLogger builds the CLI logger writing to w.
func (c Config) NewLogger(w io.Writer) (*log.ZerologAdapter, error) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.New(w, c.LogFormat, level), nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
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

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a bool with strconv.ParseBool and sets it if flag not changed.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}
