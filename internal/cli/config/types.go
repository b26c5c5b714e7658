// Package config provides configuration management for the datagrid CLI.
//
// The grid configuration itself lives in internal/config and is shared
// with the UI server; this package adds CLI-specific fields and the
// layered loader.
package config

import (
	intconfig "github.com/leapstack-labs/datagrid/internal/config"
)

// GridConfig is an alias for the shared grid configuration.
type GridConfig = intconfig.GridConfig

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = intconfig.ProjectConfig

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	Watch         bool   `koanf:"watch"`
	AutoOpen      bool   `koanf:"auto_open"`
	SessionSecret string `koanf:"session_secret"`
}

// Config holds all CLI configuration options.
type Config struct {
	ProjectConfig `koanf:",squash"`

	// Endpoint is the base URL relative grid sources resolve against.
	Endpoint     string   `koanf:"endpoint"`
	StatePath    string   `koanf:"state_path"`
	Verbose      bool     `koanf:"verbose"`
	OutputFormat string   `koanf:"output"`
	UI           UIConfig `koanf:"ui"`

	// ProjectRoot is the directory paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultStateFile = ".datagrid/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultPort      = intconfig.DefaultPort
	DefaultEndpoint  = "http://localhost:8080"
)

// EnvPrefix prefixes environment overrides. A double underscore
// separates nested keys: DATAGRID_UI__PORT sets ui.port.
const EnvPrefix = "DATAGRID_"
