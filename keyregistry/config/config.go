// Package config defines the single, authoritative configuration for the key
// registry service. It is created in two stages:
//  1. Built from YAML (NewConfigFromYaml).
//  2. Completed with environment variables and validated
//     (UpdateConfigWithEnvOverrides).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"
)

// CacheConfig controls the optional read-through record cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyPrefix  string `yaml:"key_prefix"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Config is the runtime configuration.
type Config struct {
	RunMode             string `yaml:"run_mode"`
	ProjectID           string `yaml:"project_id"`
	HTTPListenAddr      string `yaml:"http_listen_addr"`
	IdentityServiceURL  string `yaml:"identity_service_url"`
	FirestoreCollection string `yaml:"firestore_collection"`

	// BaseURI and KeyBasePath compose generated key ids:
	// {base_uri}{key_base_path}/{url-encoded slug}.
	BaseURI     string `yaml:"base_uri"`
	KeyBasePath string `yaml:"key_base_path"`

	Cache CacheConfig `yaml:"cache"`

	Cors struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	// AdminActors hold every key permission for every resource.
	AdminActors []string `yaml:"admin_actors"`

	// Keys are provisioned at startup, ignoring duplicate-insert errors.
	Keys []ProvisionedKey `yaml:"keys"`

	// CorsConfig is the processed, ready-to-use middleware config.
	CorsConfig middleware.CorsConfig `yaml:"-"`
}

// NewConfigFromYaml builds the base Config from raw YAML bytes and applies
// defaults. Stage 1: no environment overrides yet.
func NewConfigFromYaml(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if cfg.KeyBasePath == "" {
		cfg.KeyBasePath = "/keys"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "key-registry:"
	}
	if cfg.Cache.Enabled && cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}

	cfg.CorsConfig = middleware.CorsConfig{
		AllowedOrigins: cfg.Cors.AllowedOrigins,
		Role:           middleware.CorsRoleDefault,
	}

	return &cfg, nil
}

// UpdateConfigWithEnvOverrides completes the base configuration by applying
// environment variables and final validation. Stage 2.
func UpdateConfigWithEnvOverrides(cfg *Config) (*Config, error) {
	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		cfg.ProjectID = projectID
	}
	if idURL := os.Getenv("IDENTITY_SERVICE_URL"); idURL != "" {
		cfg.IdentityServiceURL = idURL
	}
	if baseURI := os.Getenv("KEY_BASE_URI"); baseURI != "" {
		cfg.BaseURI = baseURI
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Cache.RedisAddr = redisAddr
	}

	if cfg.BaseURI == "" {
		return nil, fmt.Errorf("base_uri is not set (yaml base_uri or KEY_BASE_URI)")
	}
	if cfg.HTTPListenAddr == "" {
		return nil, fmt.Errorf("http_listen_addr is not set")
	}

	return cfg, nil
}

// Load reads a YAML file and runs both configuration stages.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}
	cfg, err := NewConfigFromYaml(data)
	if err != nil {
		return nil, err
	}
	return UpdateConfigWithEnvOverrides(cfg)
}
