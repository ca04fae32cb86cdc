// Package config provides configuration types and loading for the
// authorization core.
package config

import (
	"fmt"

	"github.com/identura/authcore/internal/observability"
)

// Default values.
const (
	// DefaultServerAddr is the default listen address for the access API.
	DefaultServerAddr = ":8080"

	// DefaultInlineThresholdKB is the default claim-inlining threshold.
	// Minimized views serializing above this size are replaced by an
	// indirection claim.
	DefaultInlineThresholdKB = 4

	// DefaultTenantCacheTTL is the default TTL for cached tenant
	// snapshots (tenant, primary organization, core products).
	DefaultTenantCacheTTL = "5m"

	// DefaultCacheMaxEntries is the default cap for the memory cache.
	DefaultCacheMaxEntries = 10000
)

// Config is the root configuration for the authorization core.
type Config struct {
	// Server configures the HTTP access API.
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configures structured logging.
	Logging observability.LogConfig `yaml:"logging" json:"logging"`

	// Tracing configures OpenTelemetry tracing.
	Tracing observability.TracerConfig `yaml:"tracing" json:"tracing"`

	// Cache configures the tenant metadata cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Claims configures token claim encoding.
	Claims ClaimsConfig `yaml:"claims" json:"claims"`

	// Platform configures tenant-platform behavior.
	Platform PlatformConfig `yaml:"platform" json:"platform"`

	// Seed is an optional path to a YAML directory seed file loaded
	// into the in-memory stores at startup.
	Seed string `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// ServerConfig configures the HTTP access API.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" json:"addr"`
}

// ClaimsConfig configures token claim encoding.
type ClaimsConfig struct {
	// InlineThresholdKB is the maximum serialized size, in kilobytes,
	// of a minimized access view that may be embedded inline in a
	// token. Larger views are replaced by an indirection claim.
	InlineThresholdKB int `yaml:"inlineThresholdKB" json:"inlineThresholdKB"`

	// AccessURLBase is the externally reachable base URL used to build
	// indirection claims, e.g. "https://auth.example.com".
	AccessURLBase string `yaml:"accessURLBase" json:"accessURLBase"`
}

// PlatformConfig configures tenant-platform behavior.
type PlatformConfig struct {
	// RootGroup is the id of the platform root tenant. Accounts of the
	// root tenant are eligible for super elevation.
	RootGroup string `yaml:"rootGroup" json:"rootGroup"`

	// FullSuperControl, when true, lets super admins perform mutating
	// operations everywhere. When false, super access is limited to
	// read/create methods and the plugin administration namespace.
	FullSuperControl bool `yaml:"fullSuperControl" json:"fullSuperControl"`

	// PluginNamespace is the resource-name prefix of the plugin
	// administration surface, always writable by super admins.
	PluginNamespace string `yaml:"pluginNamespace" json:"pluginNamespace"`

	// TenantCacheTTL is the TTL for cached tenant snapshots.
	TenantCacheTTL Duration `yaml:"tenantCacheTTL" json:"tenantCacheTTL"`
}

// CacheConfig configures the tenant metadata cache backend.
type CacheConfig struct {
	// Enabled indicates whether caching is enabled. A disabled cache
	// degrades every lookup to a fresh read.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Type is the cache backend type: "memory" or "redis".
	Type string `yaml:"type" json:"type"`

	// MaxEntries is the maximum number of entries for the memory cache.
	MaxEntries int `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`

	// Redis contains Redis-specific configuration.
	Redis *RedisCacheConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisCacheConfig contains Redis-specific cache configuration.
type RedisCacheConfig struct {
	// URL is the Redis connection URL.
	// Format: redis://[user:password@]host:port[/db]
	URL string `yaml:"url" json:"url"`

	// KeyPrefix is a prefix added to all cache keys.
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// PoolSize is the maximum number of connections in the pool.
	PoolSize int `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
}

// Cache backend types.
const (
	// CacheTypeMemory uses in-memory caching.
	CacheTypeMemory = "memory"

	// CacheTypeRedis uses Redis for caching.
	CacheTypeRedis = "redis"
)

// Default returns a Config populated with defaults.
func Default() *Config {
	ttl, _ := parseDuration(DefaultTenantCacheTTL)
	return &Config{
		Server:  ServerConfig{Addr: DefaultServerAddr},
		Logging: observability.DefaultLogConfig(),
		Tracing: observability.TracerConfig{ServiceName: "authcore", SamplingRate: 1.0},
		Cache: CacheConfig{
			Enabled:    true,
			Type:       CacheTypeMemory,
			MaxEntries: DefaultCacheMaxEntries,
		},
		Claims: ClaimsConfig{
			InlineThresholdKB: DefaultInlineThresholdKB,
		},
		Platform: PlatformConfig{
			PluginNamespace: "plugins",
			TenantCacheTTL:  ttl,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Claims.InlineThresholdKB <= 0 {
		return fmt.Errorf("claims.inlineThresholdKB must be positive")
	}
	if c.Platform.RootGroup == "" {
		return fmt.Errorf("platform.rootGroup must be set")
	}
	switch c.Cache.Type {
	case CacheTypeMemory, CacheTypeRedis, "":
	default:
		return fmt.Errorf("cache.type %q is not supported", c.Cache.Type)
	}
	if c.Cache.Type == CacheTypeRedis && (c.Cache.Redis == nil || c.Cache.Redis.URL == "") {
		return fmt.Errorf("cache.redis.url must be set for redis cache")
	}
	return nil
}
