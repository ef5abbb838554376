package etag

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Config holds engine configuration.
type Config struct {
	// Enabled is the default for routes that do not set RouteConfig.Enabled.
	Enabled bool

	// Algorithm selects the fingerprint function (default: AlgorithmSHA1).
	Algorithm Algorithm

	// Logger to use. A component logger from the global zerolog logger is
	// used if nil.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Algorithm: AlgorithmSHA1,
	}
}

// RouteConfig is the per-route configuration read from route metadata.
type RouteConfig struct {
	// Enabled opts a route in or out. nil falls back to Config.Enabled.
	Enabled *bool `yaml:"enabled" json:"enabled,omitempty"`
}

// Enable returns a RouteConfig that opts a route in.
func Enable() RouteConfig {
	enabled := true
	return RouteConfig{Enabled: &enabled}
}

// Disable returns a RouteConfig that opts a route out.
func Disable() RouteConfig {
	enabled := false
	return RouteConfig{Enabled: &enabled}
}

// resolve returns the effective enabled flag for the route.
func (rc RouteConfig) resolve(fallback bool) bool {
	if rc.Enabled == nil {
		return fallback
	}
	return *rc.Enabled
}

// ParseAlgorithm converts a configuration string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return AlgorithmSHA1, nil
	}
	if _, ok := hashers[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
	return a, nil
}
