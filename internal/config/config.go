// Package config loads and validates DispatcherConfig. Loading from files or
// environment variables is an external concern to the dispatch core; this
// package produces a structured value and nothing in the dispatch core
// packages imports os directly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chainrpc/dispatch/internal/rpcerr"
)

// EndpointConfig is the configuration-time description of one endpoint.
// RequestsPerSecond, when non-nil, replaces the global rate-limit quota for
// that endpoint only (see the resolved "replacement" semantics).
type EndpointConfig struct {
	URL               string
	Weight            int
	Enabled           bool
	RequestsPerSecond *int
}

// RateLimitConfig is the default, process-wide rate-limit quota.
type RateLimitConfig struct {
	MaxRPS    int
	BurstSize int
}

// DispatcherConfig is process-lifetime, immutable after construction.
type DispatcherConfig struct {
	Endpoints       []EndpointConfig
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RequestTimeout  time.Duration
	RateLimit       RateLimitConfig
	FreshnessWindow time.Duration
	// RequireHTTPS rejects plain-http endpoint URLs at Validate time. Left
	// false by default so local testing against a scripted http:// endpoint
	// keeps working.
	RequireHTTPS bool
}

// Validate enforces the construction-time invariants: at least one enabled
// endpoint, HTTP/HTTPS schemes only, non-zero rate-limit quota, positive
// retry/delay bounds.
func (c DispatcherConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return rpcerr.New(rpcerr.InvalidConfig, "endpoints list must not be empty")
	}

	anyEnabled := false
	for i, e := range c.Endpoints {
		if !e.Enabled {
			continue
		}
		anyEnabled = true

		u, err := url.Parse(e.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return rpcerr.New(rpcerr.InvalidConfig, fmt.Sprintf("endpoint %d: url must be http(s): %q", i, e.URL))
		}
		if c.RequireHTTPS && u.Scheme != "https" {
			return rpcerr.New(rpcerr.InvalidConfig, fmt.Sprintf("endpoint %d: https required: %q", i, e.URL))
		}
		if e.Weight < 1 {
			return rpcerr.New(rpcerr.InvalidConfig, fmt.Sprintf("endpoint %d: weight must be >= 1", i))
		}
		if e.RequestsPerSecond != nil && *e.RequestsPerSecond <= 0 {
			return rpcerr.New(rpcerr.InvalidConfig, fmt.Sprintf("endpoint %d: requests_per_second must be > 0", i))
		}
	}
	if !anyEnabled {
		return rpcerr.New(rpcerr.NoEnabledEndpoints, "no endpoint is enabled")
	}

	if c.RateLimit.MaxRPS <= 0 {
		return rpcerr.New(rpcerr.InvalidConfig, "rate_limit.max_rps must be > 0")
	}
	if c.RateLimit.BurstSize <= 0 {
		return rpcerr.New(rpcerr.InvalidConfig, "rate_limit.burst_size must be > 0")
	}
	if c.MaxRetries < 1 {
		return rpcerr.New(rpcerr.InvalidConfig, "max_retries must be >= 1")
	}
	if c.BaseDelay <= 0 || c.MaxDelay <= 0 || c.MaxDelay < c.BaseDelay {
		return rpcerr.New(rpcerr.InvalidConfig, "base_delay/max_delay must be positive with max_delay >= base_delay")
	}
	if c.RequestTimeout <= 0 {
		return rpcerr.New(rpcerr.InvalidConfig, "request_timeout must be > 0")
	}
	if c.FreshnessWindow <= 0 {
		return rpcerr.New(rpcerr.InvalidConfig, "freshness_window must be > 0")
	}

	return nil
}

// LoadFromEnv builds a DispatcherConfig from environment variables,
// optionally overlaying a .env file first. Endpoint URLs are given as a
// comma-separated CHAINRPC_ENDPOINTS list; weights/overrides are uniform
// defaults here, left to callers to override field-by-field afterward.
func LoadFromEnv(envFile string) (DispatcherConfig, error) {
	if envFile != "" {
		_ = godotenv.Overload(envFile)
	} else {
		_ = godotenv.Load()
	}

	urls := getEnvSlice("CHAINRPC_ENDPOINTS", nil)
	endpoints := make([]EndpointConfig, 0, len(urls))
	for _, u := range urls {
		endpoints = append(endpoints, EndpointConfig{
			URL:     strings.TrimSpace(u),
			Weight:  1,
			Enabled: true,
		})
	}

	cfg := DispatcherConfig{
		Endpoints:      endpoints,
		MaxRetries:     getEnvInt("CHAINRPC_MAX_RETRIES", 3),
		BaseDelay:      time.Duration(getEnvInt("CHAINRPC_BASE_DELAY_MS", 200)) * time.Millisecond,
		MaxDelay:       time.Duration(getEnvInt("CHAINRPC_MAX_DELAY_MS", 5000)) * time.Millisecond,
		RequestTimeout: time.Duration(getEnvInt("CHAINRPC_REQUEST_TIMEOUT_MS", 10000)) * time.Millisecond,
		RateLimit: RateLimitConfig{
			MaxRPS:    getEnvInt("CHAINRPC_MAX_RPS", 20),
			BurstSize: getEnvInt("CHAINRPC_BURST_SIZE", 20),
		},
		FreshnessWindow: time.Duration(getEnvInt("CHAINRPC_FRESHNESS_WINDOW_SEC", 30)) * time.Second,
		RequireHTTPS:    getEnvBool("CHAINRPC_REQUIRE_HTTPS", false),
	}

	return cfg, cfg.Validate()
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvSlice(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
