package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the maskfill configuration file (~/.config/maskfill/config.yaml).
// Values only apply when the matching flag was not set.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	ModelsDir string `yaml:"models_dir"`

	// Inference
	Endpoint string `yaml:"endpoint"`
	HubURL   string `yaml:"hub_url"`
	CacheTTL string `yaml:"cache_ttl"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "maskfill", "config.yaml")
}

// loadConfig reads the config file. A missing file yields a zero Config.
func loadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.CacheTTL != "" {
		if _, err := time.ParseDuration(cfg.CacheTTL); err != nil {
			return Config{}, fmt.Errorf("parse %s: cache_ttl: %w", path, err)
		}
	}
	return cfg, nil
}

// applyGlobalConfig applies config file defaults to the root flags.
func applyGlobalConfig(c *cli.Command, cfg Config) {
	if cfg.DataDir != "" && !c.IsSet("datadir") {
		dataDir = cfg.DataDir
	}
	if cfg.Endpoint != "" && !c.IsSet("endpoint") {
		endpoint = cfg.Endpoint
	}
	if cfg.HubURL != "" && !c.IsSet("hub-url") {
		hubURL = cfg.HubURL
	}
	if cfg.CacheTTL != "" && !c.IsSet("cache-ttl") {
		if d, err := time.ParseDuration(cfg.CacheTTL); err == nil {
			cacheTTL = d
		}
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr, modelsPath *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		*modelsPath = cfg.ModelsDir
	}
}
