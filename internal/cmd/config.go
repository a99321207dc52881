package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from a yaml file with defaults
// for everything so the server runs with no file at all.
type Config struct {
	Auction struct {
		BidDurationSec     int    `yaml:"bid_duration_sec"`
		InitialTeamTokens  int    `yaml:"initial_team_tokens"`
		LowStockThresholds []int  `yaml:"low_stock_thresholds"`
		CatalogFile        string `yaml:"catalog_file"`
		SettleAttempts     int    `yaml:"settle_attempts"`
		SettleRetryMs      int    `yaml:"settle_retry_ms"`
	} `yaml:"auction"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Auction.BidDurationSec = 30
	cfg.Auction.InitialTeamTokens = 1500
	cfg.Auction.LowStockThresholds = []int{20, 5}
	cfg.Auction.SettleAttempts = 3
	cfg.Auction.SettleRetryMs = 500
	cfg.NATS.URL = "nats://127.0.0.1:4222"
	cfg.NATS.SubjectPrefix = "auction.events"
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) bidDuration() time.Duration {
	return time.Duration(c.Auction.BidDurationSec) * time.Second
}

func (c *Config) settleRetryDelay() time.Duration {
	return time.Duration(c.Auction.SettleRetryMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
