package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() DispatcherConfig {
	return DispatcherConfig{
		Endpoints: []EndpointConfig{
			{URL: "https://rpc.example.com", Weight: 1, Enabled: true},
		},
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		RequestTimeout:  10 * time.Second,
		RateLimit:       RateLimitConfig{MaxRPS: 10, BurstSize: 10},
		FreshnessWindow: 30 * time.Second,
	}
}

func TestValidConfigPasses(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestEmptyEndpointsRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoints = nil
	assert.Error(t, cfg.Validate())
}

func TestNoEnabledEndpointsRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoints[0].Enabled = false
	assert.Error(t, cfg.Validate())
}

func TestBadURLSchemeRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoints[0].URL = "ftp://rpc.example.com"
	assert.Error(t, cfg.Validate())
}

func TestZeroMaxRPSRejected(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.MaxRPS = 0
	assert.Error(t, cfg.Validate())
}

func TestZeroBurstSizeRejected(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.BurstSize = 0
	assert.Error(t, cfg.Validate())
}

func TestMaxDelayLessThanBaseDelayRejected(t *testing.T) {
	cfg := validConfig()
	cfg.MaxDelay = 10 * time.Millisecond
	cfg.BaseDelay = 200 * time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestRequireHTTPSRejectsPlainHTTP(t *testing.T) {
	cfg := validConfig()
	cfg.RequireHTTPS = true
	cfg.Endpoints[0].URL = "http://rpc.example.com"
	assert.Error(t, cfg.Validate())
}

func TestPerEndpointRPSOverrideMustBePositive(t *testing.T) {
	cfg := validConfig()
	bad := 0
	cfg.Endpoints[0].RequestsPerSecond = &bad
	assert.Error(t, cfg.Validate())
}
