package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the ashlar configuration file (~/.config/ashlar/config.yaml).
// Numeric fields are pointers so "not set" and zero stay distinguishable.
type Config struct {
	// Pool
	Backend string `yaml:"backend"`
	Devices *int64 `yaml:"devices"`

	// Planner
	BlockMultiplier *int64 `yaml:"block_multiplier"`
	ReserveMiB      *int64 `yaml:"reserve_mib"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	SpoolDir      string `yaml:"spool_dir"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ashlar", "config.yaml")
}

// applyPoolConfig applies config file defaults to the shared pool and
// logging variables when the corresponding CLI flag was not explicitly set.
func applyPoolConfig(c *cli.Command, cfg Config) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.Devices != nil && !c.IsSet("devices") {
		devices = *cfg.Devices
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyPlanConfig applies config file defaults to planner flags.
func applyPlanConfig(c *cli.Command, cfg Config, blockMultiplier, reserveMiB *int64) {
	if cfg.BlockMultiplier != nil && !c.IsSet("block-multiplier") {
		*blockMultiplier = *cfg.BlockMultiplier
	}
	if cfg.ReserveMiB != nil && !c.IsSet("reserve-mib") {
		*reserveMiB = *cfg.ReserveMiB
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr, spoolDir *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.SpoolDir != "" && !c.IsSet("spool-dir") {
		*spoolDir = cfg.SpoolDir
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
