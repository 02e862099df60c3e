package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method
	Limit  int           // maximum requests per window
	Window time.Duration // time window
	Burst  int           // burst capacity, defaults to Limit
}

// DefaultEndpointConfigs returns the endpoint-specific limits. Extraction may
// launch a browser and relays call a slow backend, so both are stricter than
// the default.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/messages", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/match", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/cover-letter", Method: "POST", Limit: 10, Window: time.Minute, Burst: 2},
	}
}

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Returns nil when no endpoint-specific config applies.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	// Health checks are unlimited
	if path == "/health" && method == "GET" {
		return &EndpointConfig{}
	}

	for i := range configs {
		config := &configs[i]
		if config.Path == path && config.Method == method {
			return config
		}
	}

	for i := range configs {
		config := &configs[i]
		if config.Method == method && strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) {
			return config
		}
	}
	return nil
}
