// Package config loads the etag server configuration.
//
// Settings come from environment variables and an optional YAML file named
// by CONFIG_FILE. Environment variables take precedence over the file.
//
// Example file:
//
//	etag:
//	  enabled: true
//	  algorithm: sha256
//	routes:
//	  - pattern: /health
//	    enabled: false
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Sternrassler/etagger/pkg/etag"
	"github.com/Sternrassler/etagger/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvPort          = "PORT"
	EnvRedisURL      = "REDIS_URL"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogPretty     = "LOG_PRETTY"
	EnvETagEnabled   = "ETAG_ENABLED"
	EnvETagAlgorithm = "ETAG_ALGORITHM"
	EnvConfigFile    = "CONFIG_FILE"
)

// Config is the resolved server configuration.
type Config struct {
	Port      string
	RedisAddr string
	Log       logging.Config
	ETag      etag.Config

	// Overrides maps route patterns to route configuration.
	Overrides map[string]etag.RouteConfig
}

// File is the layout of the YAML configuration file.
type File struct {
	ETag   FileETag `yaml:"etag"`
	Routes []Route  `yaml:"routes"`
}

// FileETag holds engine settings from the configuration file.
type FileETag struct {
	Enabled   *bool  `yaml:"enabled"`
	Algorithm string `yaml:"algorithm"`
}

// Route is a per-route override from the configuration file.
type Route struct {
	Pattern          string `yaml:"pattern"`
	etag.RouteConfig `yaml:",inline"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration using getenv to look up variables.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:      getEnv(getenv, EnvPort, "8080"),
		RedisAddr: getEnv(getenv, EnvRedisURL, "localhost:6379"),
		Log:       logging.DefaultConfig(),
		ETag:      etag.DefaultConfig(),
		Overrides: map[string]etag.RouteConfig{},
	}

	if path := getenv(EnvConfigFile); path != "" {
		file, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.apply(file); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if v := getenv(EnvLogLevel); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.Log.Level = level
	}
	if v := getenv(EnvLogPretty); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogPretty, err)
		}
		cfg.Log.Pretty = pretty
	}
	if v := getenv(EnvETagEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvETagEnabled, err)
		}
		cfg.ETag.Enabled = enabled
	}
	if v := getenv(EnvETagAlgorithm); v != "" {
		algorithm, err := etag.ParseAlgorithm(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvETagAlgorithm, err)
		}
		cfg.ETag.Algorithm = algorithm
	}

	return cfg, nil
}

// ReadFile parses a YAML configuration file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &file, nil
}

func (c *Config) apply(file *File) error {
	if file.ETag.Enabled != nil {
		c.ETag.Enabled = *file.ETag.Enabled
	}
	if file.ETag.Algorithm != "" {
		algorithm, err := etag.ParseAlgorithm(file.ETag.Algorithm)
		if err != nil {
			return err
		}
		c.ETag.Algorithm = algorithm
	}
	for i, route := range file.Routes {
		if route.Pattern == "" {
			return fmt.Errorf("routes[%d]: missing pattern", i)
		}
		c.Overrides[route.Pattern] = route.RouteConfig
	}
	return nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}
