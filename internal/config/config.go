// Package config loads the server's ambient configuration from an
// optional YAML/TOML/JSON file, applies environment overrides and
// validates the result. The listening port and the shared connection
// password are not configured here: they come from the command line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server struct {
		Name        string   `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME" validate:"required"`
		Network     string   `yaml:"network" toml:"network" json:"network" env:"IRCD_NETWORK" validate:"required"`
		Description string   `yaml:"description" toml:"description" json:"description" env:"IRCD_DESCRIPTION"`
		MOTD        []string `yaml:"motd" toml:"motd" json:"motd" env:"IRCD_MOTD" envSeparator:"|"`
	} `yaml:"server" toml:"server" json:"server"`

	Limits struct {
		// RegistrationTimeout is the handshake grace period in seconds.
		RegistrationTimeout int `yaml:"registration_timeout" toml:"registration_timeout" json:"registration_timeout" env:"IRCD_REGISTRATION_TIMEOUT" validate:"min=1"`
	} `yaml:"limits" toml:"limits" json:"limits"`

	// Operators are the OPER credentials. Passwords are bcrypt hashes.
	Operators []Operator `yaml:"operators" toml:"operators" json:"operators" validate:"dive"`

	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Bind    string `yaml:"bind" toml:"bind" json:"bind" env:"IRCD_ADMIN_BIND" validate:"required_with=Enabled"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	History struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_HISTORY_ENABLED"`
		Path    string `yaml:"path" toml:"path" json:"path" env:"IRCD_HISTORY_PATH"`
	} `yaml:"history" toml:"history" json:"history"`
}

// Operator is one OPER credential entry.
type Operator struct {
	Username     string `yaml:"username" toml:"username" json:"username" validate:"required"`
	PasswordHash string `yaml:"password_hash" toml:"password_hash" json:"password_hash" validate:"required"`
}

// Default returns a configuration with working defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "goircd.local"
	cfg.Server.Network = "GoIRCd"
	cfg.Limits.RegistrationTimeout = 60
	cfg.Admin.Bind = "127.0.0.1:8080"
	return cfg
}

// Load builds the configuration: defaults, then the optional file,
// then environment overrides, then validation. An empty source skips
// the file step.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFile(source); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFile reads and parses a config file, the format chosen by
// extension. YAML is the default.
func (c *Config) loadFile(source string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", source, err)
	}

	return nil
}
