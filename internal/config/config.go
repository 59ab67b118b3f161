// Package config handles TOML configuration parsing and validation for
// staticdhcpd. It covers the options named in the external-interfaces
// contract: listening ports, relay/authority policy, abuse-control
// timeouts, and the cache chain's backend selection. Everything else
// (the reference database's schema, the extension hooks, the HTTP
// dashboard) is an external collaborator configured elsewhere.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for staticdhcpd.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Cache      CacheConfig      `toml:"cache"`
	Database   DatabaseConfig   `toml:"database"`
}

// ServerConfig holds network-link and relay/authority policy settings
// (spec §6).
type ServerConfig struct {
	ServerIP               string   `toml:"server_ip"`
	ServerPort             int      `toml:"server_port"`
	ClientPort             int      `toml:"client_port"`
	ProxyPort              int      `toml:"proxy_port"`
	ResponseInterface      string   `toml:"response_interface"`
	ResponseInterfaceQTags []QTag   `toml:"response_interface_qtags"`
	LogLevel               string   `toml:"log_level"`
	AllowLocalDHCP         *bool    `toml:"allow_local_dhcp"`
	AllowDHCPRelays        bool     `toml:"allow_dhcp_relays"`
	AllowedDHCPRelays      []string `toml:"allowed_dhcp_relays"`
	Authoritative          bool     `toml:"authoritative"`
	NakRenewals            bool     `toml:"nak_renewals"`
	EnableRapidCommit      *bool    `toml:"enable_rapidcommit"`
	WorkerPoolSize         int      `toml:"worker_pool_size"`
}

// AllowsLocalDHCP reports the effective allow-local-dhcp setting,
// defaulting to true when unset (spec §6).
func (s ServerConfig) AllowsLocalDHCP() bool {
	return s.AllowLocalDHCP == nil || *s.AllowLocalDHCP
}

// RapidCommitEnabled reports the effective rapid-commit setting,
// defaulting to true when unset (spec §6).
func (s ServerConfig) RapidCommitEnabled() bool {
	return s.EnableRapidCommit == nil || *s.EnableRapidCommit
}

// QTag is one 802.1Q tag applied by the L2 raw responder (spec §4.3).
type QTag struct {
	PCP int  `toml:"pcp"` // 0-7
	DEI bool `toml:"dei"`
	VID int  `toml:"vid"` // 1-4094
}

// DispatcherConfig holds the abuse-control thresholds (spec §4.5, §6).
type DispatcherConfig struct {
	EnableSuspend             *bool `toml:"enable_suspend"`
	SuspendThreshold          int   `toml:"suspend_threshold"`
	UnauthorizedClientTimeout int   `toml:"unauthorized_client_timeout"` // seconds
	MisbehavingClientTimeout  int   `toml:"misbehaving_client_timeout"`  // seconds
}

// SuspendEnabled reports the effective enable-suspend setting,
// defaulting to true when unset (spec §6).
func (d DispatcherConfig) SuspendEnabled() bool {
	return d.EnableSuspend == nil || *d.EnableSuspend
}

// CacheConfig selects the cache-chain topology layered over the
// reference database (spec §4.2).
type CacheConfig struct {
	UseCache        bool   `toml:"use_cache"`
	CacheOnDisk     bool   `toml:"cache_on_disk"`
	PersistentCache string `toml:"persistent_cache"` // path; empty = private temp file
}

// DatabaseConfig holds the connection fields and pool size for the
// pluggable reference-database backend (spec §4.2, §6). The concrete
// backend (SQL, INI, custom) is opaque to the core; only PoolSize gates
// the concurrency semaphore guarding real lookups.
type DatabaseConfig struct {
	Engine   string `toml:"engine"`
	DSN      string `toml:"dsn"`
	PoolSize int    `toml:"pool_size"`
}

// Load reads and parses a TOML config file, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in default values for unset fields (spec §6
// defaults, in parentheses after each option name).
func applyDefaults(cfg *Config) {
	if cfg.Server.ServerPort == 0 {
		cfg.Server.ServerPort = DefaultServerPort
	}
	if cfg.Server.ClientPort == 0 {
		cfg.Server.ClientPort = DefaultClientPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.WorkerPoolSize == 0 {
		cfg.Server.WorkerPoolSize = DefaultWorkerPoolSize
	}

	if cfg.Dispatcher.SuspendThreshold == 0 {
		cfg.Dispatcher.SuspendThreshold = DefaultSuspendThreshold
	}
	if cfg.Dispatcher.UnauthorizedClientTimeout == 0 {
		cfg.Dispatcher.UnauthorizedClientTimeout = int(DefaultUnauthorizedTimeout.Seconds())
	}
	if cfg.Dispatcher.MisbehavingClientTimeout == 0 {
		cfg.Dispatcher.MisbehavingClientTimeout = int(DefaultMisbehavingTimeout.Seconds())
	}

	if cfg.Database.PoolSize == 0 {
		cfg.Database.PoolSize = DefaultDatabasePoolSize
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if cfg.Server.ServerIP != "" {
		if ip := net.ParseIP(cfg.Server.ServerIP); ip == nil {
			return fmt.Errorf("server.server_ip %q is not a valid IP address", cfg.Server.ServerIP)
		}
	}

	for _, relay := range cfg.Server.AllowedDHCPRelays {
		if ip := net.ParseIP(relay); ip == nil {
			return fmt.Errorf("server.allowed_dhcp_relays: %q is not a valid IP address", relay)
		}
	}

	for i, tag := range cfg.Server.ResponseInterfaceQTags {
		if tag.PCP < 0 || tag.PCP > 7 {
			return fmt.Errorf("server.response_interface_qtags[%d]: pcp %d out of range 0-7", i, tag.PCP)
		}
		if tag.VID < 1 || tag.VID > 4094 {
			return fmt.Errorf("server.response_interface_qtags[%d]: vid %d out of range 1-4094", i, tag.VID)
		}
	}

	if cfg.Dispatcher.SuspendThreshold < 0 {
		return fmt.Errorf("dispatcher.suspend_threshold must be >= 0")
	}

	if cfg.Cache.CacheOnDisk && !cfg.Cache.UseCache {
		return fmt.Errorf("cache.cache_on_disk requires cache.use_cache")
	}

	return nil
}

// UnauthorizedTimeout returns the configured unauthorized-client
// cooldown as a time.Duration.
func (c *Config) UnauthorizedTimeout() time.Duration {
	return time.Duration(c.Dispatcher.UnauthorizedClientTimeout) * time.Second
}

// MisbehavingTimeout returns the configured misbehaving-client cooldown
// as a time.Duration.
func (c *Config) MisbehavingTimeout() time.Duration {
	return time.Duration(c.Dispatcher.MisbehavingClientTimeout) * time.Second
}
