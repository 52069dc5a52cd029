package main

import "github.com/aineurostream/synchro/internal/config"

// Re-export types and functions from the config sub-package so callers in
// package main don't need a second import alias.

// Config holds all persistent local preferences for the engine binary.
type Config = config.Config

// LoadConfig loads the local preferences file, returning defaults on any
// error.
func LoadConfig() Config { return config.Load() }

// SaveConfig persists cfg to disk.
func SaveConfig(cfg Config) error { return config.Save(cfg) }
