package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML and YAML friendly.
type FileConfig struct {
	Timeout       string `toml:"timeout" yaml:"timeout"`
	Terminate     *bool  `toml:"terminate" yaml:"terminate"`
	Report        *bool  `toml:"report" yaml:"report"`
	RepeatReport  *bool  `toml:"repeat_report" yaml:"repeat_report"`
	WakeInterval  string `toml:"wake_interval" yaml:"wake_interval"`
	Grace         string `toml:"grace" yaml:"grace"`
	HeartbeatFile string `toml:"heartbeat_file" yaml:"heartbeat_file"`
	Listen        string `toml:"listen" yaml:"listen"`
	LogLevel      string `toml:"log_level" yaml:"log_level"`
	LogFormat     string `toml:"log_format" yaml:"log_format"`
}

// LoadFileConfig reads and parses a config file from the given path.
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse toml %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.canary/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".canary", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("heartbeat-file", fc.HeartbeatFile, &cfg.HeartbeatFile)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("wake-interval", fc.WakeInterval, &cfg.WakeInterval); err != nil {
		return err
	}
	if err := s.setDuration("grace", fc.Grace, &cfg.Grace); err != nil {
		return err
	}

	s.setBool("terminate", fc.Terminate, &cfg.Terminate)
	s.setBool("report", fc.Report, &cfg.Report)
	s.setBool("repeat-report", fc.RepeatReport, &cfg.RepeatReport)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
