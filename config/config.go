// Package config loads the bridge client configuration from TOML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ipc-bridge/logging"
)

const (
	EnvAddrs         = "IPCBRIDGE_ADDRS"
	EnvEtcdEndpoints = "IPCBRIDGE_ETCD_ENDPOINTS"
)

// Config is the resolved client configuration.
type Config struct {
	Gateway       string   // Name the gateway instances are registered under
	Addrs         []string // Static gateway addresses, used when no etcd endpoints are set
	EtcdEndpoints []string
	Balancer      string
	PoolSize      int // Connections per gateway address
	DialTimeout   time.Duration
	CallTimeout   time.Duration // Per exchange; 0 disables
	RateLimit     float64       // Exchanges per second; 0 disables
	RateBurst     int
	DialRetries   int
	RetryDelay    time.Duration
	MaxReplyBytes int64 // Per reply; 0 disables
	LogLevel      string
}

// DefaultConfig returns the defaults used for anything a file leaves out.
func DefaultConfig() Config {
	return Config{
		Gateway:     "ipc-bridge",
		Addrs:       []string{"127.0.0.1:31337"},
		Balancer:    "round_robin",
		PoolSize:    4,
		DialTimeout: 3 * time.Second,
		CallTimeout: 10 * time.Second,
		RateBurst:   1,
		DialRetries: 2,
		RetryDelay:  100 * time.Millisecond,
		LogLevel:    "info",
	}
}

type fileConfig struct {
	Gateway       string   `toml:"gateway"`
	Addrs         []string `toml:"addrs"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
	Balancer      string   `toml:"balancer"`
	PoolSize      int      `toml:"pool_size"`
	DialTimeout   string   `toml:"dial_timeout"`
	CallTimeout   string   `toml:"call_timeout"`
	RateLimit     float64  `toml:"rate_limit"`
	RateBurst     int      `toml:"rate_burst"`
	DialRetries   int      `toml:"dial_retries"`
	RetryDelay    string   `toml:"retry_delay"`
	MaxReplyBytes int64    `toml:"max_reply_bytes"`
	LogLevel      string   `toml:"log_level"`
}

// Load reads path over DefaultConfig, applies environment overrides and validates
// the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("gateway") {
		cfg.Gateway = strings.TrimSpace(raw.Gateway)
	}
	if meta.IsDefined("addrs") {
		cfg.Addrs = normalizeList(raw.Addrs)
	}
	if meta.IsDefined("etcd_endpoints") {
		cfg.EtcdEndpoints = normalizeList(raw.EtcdEndpoints)
	}
	if meta.IsDefined("balancer") {
		cfg.Balancer = strings.TrimSpace(raw.Balancer)
	}
	if meta.IsDefined("pool_size") {
		cfg.PoolSize = raw.PoolSize
	}
	if meta.IsDefined("dial_timeout") {
		if cfg.DialTimeout, err = parseDuration("dial_timeout", raw.DialTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("call_timeout") {
		if cfg.CallTimeout, err = parseDuration("call_timeout", raw.CallTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("rate_limit") {
		cfg.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		cfg.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("dial_retries") {
		cfg.DialRetries = raw.DialRetries
	}
	if meta.IsDefined("retry_delay") {
		if cfg.RetryDelay, err = parseDuration("retry_delay", raw.RetryDelay); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("max_reply_bytes") {
		cfg.MaxReplyBytes = raw.MaxReplyBytes
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	ApplyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides gateway addresses, etcd endpoints and the log level from the
// environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(logging.EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddrs)); v != "" {
		cfg.Addrs = normalizeList(strings.Split(v, ","))
	}
	if v := strings.TrimSpace(os.Getenv(EnvEtcdEndpoints)); v != "" {
		cfg.EtcdEndpoints = normalizeList(strings.Split(v, ","))
	}
}

// Validate checks that cfg describes a usable client.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Gateway) == "" {
		return fmt.Errorf("config missing gateway")
	}
	if len(cfg.Addrs) == 0 && len(cfg.EtcdEndpoints) == 0 {
		return fmt.Errorf("config needs addrs or etcd_endpoints")
	}
	switch cfg.Balancer {
	case "round_robin", "weighted_random", "consistent_hash":
	default:
		return fmt.Errorf("config balancer %q is not one of round_robin, weighted_random, consistent_hash", cfg.Balancer)
	}
	if cfg.PoolSize < 1 {
		return fmt.Errorf("config pool_size must be at least 1, got %d", cfg.PoolSize)
	}
	if cfg.DialTimeout < 0 || cfg.CallTimeout < 0 || cfg.RetryDelay < 0 {
		return fmt.Errorf("config durations must not be negative")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("config rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return fmt.Errorf("config rate_burst must be at least 1 when rate_limit is set")
	}
	if cfg.DialRetries < 0 {
		return fmt.Errorf("config dial_retries must not be negative")
	}
	if cfg.MaxReplyBytes < 0 {
		return fmt.Errorf("config max_reply_bytes must not be negative")
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("config log_level %q is not a known level", cfg.LogLevel)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
