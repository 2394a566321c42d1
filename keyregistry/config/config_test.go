package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-key-registry/keyregistry/config"
)

const fullYaml = `
run_mode: "test-mode"
project_id: "yaml-project-id"
http_listen_addr: ":9090"
identity_service_url: "http://yaml-identity.com"
firestore_collection: "my-keys-collection"
base_uri: "https://registry.example.com"
key_base_path: "/public-keys"
cache:
  enabled: true
  key_prefix: "reg:"
  ttl_seconds: 60
  redis_addr: "localhost:6379"
  redis_db: 2
cors:
  allowed_origins:
    - "http://origin1.com"
    - "http://origin2.com"
admin_actors:
  - "urn:service:admin"
keys:
  - public_key:
      id: "https://registry.example.com/public-keys/seed"
      owner: "urn:service:registry"
      label: "Seed key"
      public_key_base58: "seed-material"
    private_key:
      private_key_base58: "seed-private-material"
`

func TestNewConfigFromYaml(t *testing.T) {
	t.Run("Success - maps all fields correctly from YAML", func(t *testing.T) {
		// Act
		cfg, err := config.NewConfigFromYaml([]byte(fullYaml))

		// Assert
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "test-mode", cfg.RunMode)
		assert.Equal(t, "yaml-project-id", cfg.ProjectID)
		assert.Equal(t, ":9090", cfg.HTTPListenAddr)
		assert.Equal(t, "http://yaml-identity.com", cfg.IdentityServiceURL)
		assert.Equal(t, "my-keys-collection", cfg.FirestoreCollection)
		assert.Equal(t, "https://registry.example.com", cfg.BaseURI)
		assert.Equal(t, "/public-keys", cfg.KeyBasePath)

		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, "reg:", cfg.Cache.KeyPrefix)
		assert.Equal(t, time.Minute, cfg.Cache.TTL())
		assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
		assert.Equal(t, 2, cfg.Cache.RedisDB)

		assert.Equal(t, []string{"http://origin1.com", "http://origin2.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, []string{"urn:service:admin"}, cfg.AdminActors)

		require.Len(t, cfg.Keys, 1)
		pub, priv := cfg.Keys[0].Keys()
		assert.Equal(t, "urn:service:registry", pub.Owner)
		assert.Equal(t, "seed-material", pub.PublicKeyBase58)
		require.NotNil(t, priv)
		assert.Equal(t, "seed-private-material", priv.PrivateKeyBase58)
	})

	t.Run("Success - defaults applied when fields omitted", func(t *testing.T) {
		cfg, err := config.NewConfigFromYaml([]byte("cache:\n  enabled: true\n"))
		require.NoError(t, err)

		assert.Equal(t, "/keys", cfg.KeyBasePath)
		assert.Equal(t, "key-registry:", cfg.Cache.KeyPrefix)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	})

	t.Run("Failure - malformed YAML", func(t *testing.T) {
		_, err := config.NewConfigFromYaml([]byte("run_mode: [unclosed"))
		assert.Error(t, err)
	})
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	t.Run("Success - environment wins over YAML", func(t *testing.T) {
		// Arrange
		t.Setenv("GCP_PROJECT_ID", "env-project-id")
		t.Setenv("IDENTITY_SERVICE_URL", "http://env-identity.com")
		t.Setenv("KEY_BASE_URI", "https://env.example.com")
		t.Setenv("REDIS_ADDR", "redis.internal:6379")

		base, err := config.NewConfigFromYaml([]byte(fullYaml))
		require.NoError(t, err)

		// Act
		cfg, err := config.UpdateConfigWithEnvOverrides(base)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "env-project-id", cfg.ProjectID)
		assert.Equal(t, "http://env-identity.com", cfg.IdentityServiceURL)
		assert.Equal(t, "https://env.example.com", cfg.BaseURI)
		assert.Equal(t, "redis.internal:6379", cfg.Cache.RedisAddr)
	})

	t.Run("Failure - base_uri missing everywhere", func(t *testing.T) {
		t.Setenv("KEY_BASE_URI", "")
		base, err := config.NewConfigFromYaml([]byte("http_listen_addr: \":8080\"\n"))
		require.NoError(t, err)

		_, err = config.UpdateConfigWithEnvOverrides(base)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_uri")
	})

	t.Run("Failure - listen address missing", func(t *testing.T) {
		base, err := config.NewConfigFromYaml([]byte("base_uri: \"https://registry.example.com\"\n"))
		require.NoError(t, err)

		_, err = config.UpdateConfigWithEnvOverrides(base)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http_listen_addr")
	})
}
