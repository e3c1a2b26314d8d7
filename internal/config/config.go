// Package config holds the ptyscreen configuration and its viper bindings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the ptyscreen configuration
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Frame   FrameConfig   `mapstructure:"frame"`
	History HistoryConfig `mapstructure:"history"`
	Record  RecordConfig  `mapstructure:"record"`
	Log     LogConfig     `mapstructure:"log"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// CaptureConfig controls how captured output is drained and decoded
type CaptureConfig struct {
	// Strategy is "auto", "poll" or "select". Auto picks the host's policy.
	Strategy string `mapstructure:"strategy"`
	// CloseOrder is "auto", "device-first" or "drain-first".
	CloseOrder string `mapstructure:"close_order"`
	// IdleTimeout bounds how long the select strategy waits for more output.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// RawTail is how many raw controller bytes are kept per capture.
	RawTail int `mapstructure:"raw_tail"`
	// Encoding is the IANA name of the captured output's encoding.
	Encoding string `mapstructure:"encoding"`
}

// FrameConfig controls the framed screen
type FrameConfig struct {
	MaxWidth int `mapstructure:"max_width"`
	Margin   int `mapstructure:"margin"`
	Padding  int `mapstructure:"padding"`
}

// HistoryConfig controls capture persistence
type HistoryConfig struct {
	// Path of the sqlite database. Empty disables history.
	Path string `mapstructure:"path"`
}

// RecordConfig controls asciinema recordings
type RecordConfig struct {
	// Dir receives one .cast file per capture. Empty disables recording.
	Dir string `mapstructure:"dir"`
}

// LogConfig controls diagnostics
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServeConfig controls the history API
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Strategy:    "auto",
			CloseOrder:  "auto",
			IdleTimeout: time.Second,
			RawTail:     64 * 1024,
			Encoding:    "utf-8",
		},
		Frame: FrameConfig{
			MaxWidth: 120,
			Margin:   1,
			Padding:  1,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("capture.strategy", defaults.Capture.Strategy)
	v.SetDefault("capture.close_order", defaults.Capture.CloseOrder)
	v.SetDefault("capture.idle_timeout", defaults.Capture.IdleTimeout)
	v.SetDefault("capture.raw_tail", defaults.Capture.RawTail)
	v.SetDefault("capture.encoding", defaults.Capture.Encoding)

	v.SetDefault("frame.max_width", defaults.Frame.MaxWidth)
	v.SetDefault("frame.margin", defaults.Frame.Margin)
	v.SetDefault("frame.padding", defaults.Frame.Padding)

	v.SetDefault("history.path", defaults.History.Path)
	v.SetDefault("record.dir", defaults.Record.Dir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("serve.addr", defaults.Serve.Addr)
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ptyscreen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ptyscreen"
	}
	return filepath.Join(home, ".config", "ptyscreen")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "ptyscreen.yaml")
}
