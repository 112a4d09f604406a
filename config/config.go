// Package config loads server configuration from a YAML file with
// environment variable overrides. Missing files are not an error; every
// setting has a usable default so the server runs with no config at all.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Accounts []AccountConfig `yaml:"accounts"`
	Reminders struct {
		Cron      string `yaml:"cron"`
		GraceDays int    `yaml:"grace_days"`
	} `yaml:"reminders"`
	LogLevel string `yaml:"log_level"`
}

// AccountConfig declares one bank account known to the engine.
type AccountConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Salary bool   `yaml:"salary"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LEDGERD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REMINDER_CRON"); v != "" {
		cfg.Reminders.Cron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "ledger.db"
	}
	if cfg.Reminders.Cron == "" {
		cfg.Reminders.Cron = "0 8 * * *"
	}
	if cfg.Reminders.GraceDays == 0 {
		cfg.Reminders.GraceDays = 35
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
