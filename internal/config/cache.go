package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled. KeyStrategy determines which parts of the request contribute to
// the cache key.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 10*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "bikeshop:http"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

// CatalogConfig controls the in-process component snapshot.
//
// Staleness is how old a snapshot may be before a read forces a refresh;
// RefreshInterval drives the background refresher. RedisKey names the shared
// mirror used to warm other instances (empty disables the mirror).
type CatalogConfig struct {
	Staleness       time.Duration
	RefreshInterval time.Duration
	RedisKey        string
}

// LoadCatalogConfig reads CATALOG_* variables.
func LoadCatalogConfig() CatalogConfig {
	c := CatalogConfig{
		Staleness:       envDur("CATALOG_STALENESS", 30*time.Second),
		RefreshInterval: envDur("CATALOG_REFRESH_INTERVAL", 15*time.Second),
		RedisKey:        envStr("CATALOG_REDIS_KEY", "bikeshop:catalog"),
	}
	if c.Staleness <= 0 {
		c.Staleness = 30 * time.Second
	}
	if c.RefreshInterval <= 0 || c.RefreshInterval > c.Staleness {
		c.RefreshInterval = c.Staleness / 2
	}
	return c
}
