// Package config manages persistent local preferences for the synchro
// engine. Settings are stored as JSON at os.UserConfigDir()/synchro/config.json
// and cover operator-level defaults that live outside any single
// GraphConfig run: default devices, log level, and the metrics sink.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all persistent local preferences for the engine binary.
type Config struct {
	LogLevel         string `json:"log_level"` // "debug" | "info" | "warn" | "error"
	DefaultInputID   int    `json:"default_input_id"`
	DefaultOutputID  int    `json:"default_output_id"`
	MetricsSink      string `json:"metrics_sink"` // "stdout" | "stderr" | "file"
	MetricsSinkPath  string `json:"metrics_sink_path"`
	LastGraphConfig  string `json:"last_graph_config"` // path to the last GraphConfig YAML run, used when the binary is started without -graph
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		LogLevel:        "info",
		DefaultInputID:  -1,
		DefaultOutputID: -1,
		MetricsSink:     "stdout",
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "synchro", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned — never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
