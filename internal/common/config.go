// Package common holds configuration loading and the shared sentinel error
// vocabulary both binaries program against, grounded on the teacher's
// internal/common/config.go staging (TOML file defaults, then environment
// variable overrides).
package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full set of tunables spec.md §6 names, plus the server
// bind address both binaries need.
type Config struct {
	// GraphStorePath is the embedded graph store's data directory. The
	// concrete store is Badger (see DESIGN.md), so there is no
	// DNS/username/password triple to hold the way a networked Neo4j
	// deployment would need — this single path replaces spec.md's
	// NEO4J_DNS_NAME/NEO4J_USERNAME/NEO4J_PASSWORD trio.
	GraphStorePath string `toml:"graph_store_path"`

	HTTPTimeoutSecs      int `toml:"http_timeout_secs"`
	MaxAttempts          int `toml:"max_attempts"`
	MaxDNSDepth          int `toml:"max_dns_depth"`
	PollMinMs            int `toml:"poll_min_ms"`
	PollMaxMs            int `toml:"poll_max_ms"`
	StaleTimeoutMinutes  int `toml:"stale_timeout_minutes"`
	ServerPort           int `toml:"server_port"`
	FeederHealthPort     int `toml:"feeder_health_port"`
	FetchRatePerSecond   float64 `toml:"fetch_rate_per_second"`

	// StoreGatewayPort is where the manager serves the graph store to
	// remote feeder replicas, since only the manager process ever opens
	// Badger directly (see DESIGN.md's storeserver/storeclient note).
	StoreGatewayPort int `toml:"store_gateway_port"`
	// StoreGatewayURL is the address a feeder dials to reach that gateway.
	StoreGatewayURL string `toml:"store_gateway_url"`
}

// Defaults mirrors spec.md §6's default column.
func Defaults() *Config {
	return &Config{
		GraphStorePath:     "./data/graph",
		HTTPTimeoutSecs:    10,
		MaxAttempts:        3,
		MaxDNSDepth:        5,
		PollMinMs:          100,
		PollMaxMs:          30000,
		StaleTimeoutMinutes: 1,
		ServerPort:         8080,
		FeederHealthPort:   8081,
		FetchRatePerSecond: 0,
		StoreGatewayPort:   8082,
		StoreGatewayURL:    "http://localhost:8082",
	}
}

// LoadConfig builds a Config starting from Defaults, optionally layering an
// on-disk TOML file (path, if non-empty), then applying environment
// variable overrides — the same file-then-env staging order the teacher's
// LoadFromFiles/applyEnvOverrides pipeline follows.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := validateRequired(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func validateRequired() error {
	// spec.md §6 marks NEO4J_DNS_NAME/USERNAME/PASSWORD required for a
	// networked store; this module's store is embedded (see
	// GraphStorePath's doc comment), so there is nothing external to
	// validate connectivity against at config-load time. HealthCheck on
	// the opened store plays that role instead.
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAPH_STORE_PATH"); v != "" {
		cfg.GraphStorePath = v
	}
	if v := envInt("HTTP_TIMEOUT_SECS"); v != nil {
		cfg.HTTPTimeoutSecs = *v
	}
	if v := envInt("MAX_ATTEMPTS"); v != nil {
		cfg.MaxAttempts = *v
	}
	if v := envInt("MAX_DNS_DEPTH"); v != nil {
		cfg.MaxDNSDepth = *v
	}
	if v := envInt("POLL_MIN_MS"); v != nil {
		cfg.PollMinMs = *v
	}
	if v := envInt("POLL_MAX_MS"); v != nil {
		cfg.PollMaxMs = *v
	}
	if v := envInt("STALE_TIMEOUT_MINUTES"); v != nil {
		cfg.StaleTimeoutMinutes = *v
	}
	if v := envInt("SERVER_PORT"); v != nil {
		cfg.ServerPort = *v
	}
	if v := envInt("FEEDER_HEALTH_PORT"); v != nil {
		cfg.FeederHealthPort = *v
	}
	if v := os.Getenv("FETCH_RATE_PER_SECOND"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FetchRatePerSecond = parsed
		}
	}
	if v := envInt("STORE_GATEWAY_PORT"); v != nil {
		cfg.StoreGatewayPort = *v
	}
	if v := os.Getenv("STORE_GATEWAY_URL"); v != "" {
		cfg.StoreGatewayURL = v
	}
}

func envInt(name string) *int {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &parsed
}

// HTTPTimeout returns HTTPTimeoutSecs as a time.Duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSecs) * time.Second
}

// PollMin returns PollMinMs as a time.Duration.
func (c *Config) PollMin() time.Duration {
	return time.Duration(c.PollMinMs) * time.Millisecond
}

// PollMax returns PollMaxMs as a time.Duration.
func (c *Config) PollMax() time.Duration {
	return time.Duration(c.PollMaxMs) * time.Millisecond
}

// StaleTimeout returns StaleTimeoutMinutes as a time.Duration.
func (c *Config) StaleTimeout() time.Duration {
	return time.Duration(c.StaleTimeoutMinutes) * time.Minute
}

// Addr formats the manager's bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// StoreGatewayAddr formats the manager's store-gateway bind address, the
// internal surface feeder replicas reach through internal/storeclient
// instead of opening Badger themselves.
func (c *Config) StoreGatewayAddr() string {
	return fmt.Sprintf(":%d", c.StoreGatewayPort)
}

// FeederHealthAddr formats the feeder's /livez bind address.
func (c *Config) FeederHealthAddr() string {
	return fmt.Sprintf(":%d", c.FeederHealthPort)
}
