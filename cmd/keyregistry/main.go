package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-key-registry/internal/api"
	"github.com/tinywideclouds/go-key-registry/internal/cache/memcache"
	"github.com/tinywideclouds/go-key-registry/internal/cache/rediscache"
	"github.com/tinywideclouds/go-key-registry/internal/idgen"
	"github.com/tinywideclouds/go-key-registry/internal/permission"
	fs "github.com/tinywideclouds/go-key-registry/internal/storage/firestore"
	"github.com/tinywideclouds/go-key-registry/internal/storage/inmemory"
	"github.com/tinywideclouds/go-key-registry/keyregistry"
	"github.com/tinywideclouds/go-key-registry/keyregistry/config"
	registry "github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

//go:embed local.yaml
var configFile []byte

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := context.Background()

	// --- 1. Load Configuration ---
	baseCfg, err := config.NewConfigFromYaml(configFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build base configuration from YAML")
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to finalize configuration with environment overrides")
	}
	logger.Info().Str("run_mode", cfg.RunMode).Msg("Configuration loaded")

	// --- 2. Dependency Injection ---
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize key record store")
	}

	cache := newCache(cfg, logger)
	checker := permission.NewOwnerChecker(cfg.AdminActors)
	service := keyregistry.NewService(cfg, store, cache, checker, idgen.New(), logger)

	authenticator, err := newAuthenticator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize authentication middleware")
	}

	// --- 3. Startup Key Provisioning ---
	if err := service.ProvisionKeys(ctx, cfg.Keys); err != nil {
		logger.Fatal().Err(err).Msg("Failed to provision startup keys")
	}

	// --- 4. Start Service and Handle Shutdown ---
	wrapper := keyregistry.New(cfg, service, authenticator.Require, authenticator.Optional, logger)

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.HTTPListenAddr).Msg("Starting service...")
		if startErr := wrapper.Start(); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
			errChan <- startErr
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Fatal().Err(err).Msg("Service failed")
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("OS signal received, initiating shutdown.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if shutdownErr := wrapper.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("Service shutdown failed")
		} else {
			logger.Info().Msg("Service shutdown complete")
		}
	}
}

// newStore builds the key record store: in-memory for local run mode,
// Firestore otherwise.
func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (registry.Store, error) {
	if cfg.RunMode == "local" {
		logger.Info().Msg("Using in-memory key record store")
		return inmemory.New(), nil
	}

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client for project %s: %w", cfg.ProjectID, err)
	}
	collection := cfg.FirestoreCollection
	if collection == "" {
		collection = "public-keys"
	}
	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", collection).Msg("Using Firestore key record store")
	return fs.New(fsClient, collection, logger), nil
}

// newCache builds the read-through record cache, or returns nil when caching
// is disabled.
func newCache(cfg *config.Config, logger zerolog.Logger) registry.Cache {
	if !cfg.Cache.Enabled {
		logger.Info().Msg("Record cache disabled")
		return nil
	}
	if cfg.Cache.RedisAddr == "" {
		logger.Info().Msg("Using in-memory record cache")
		return memcache.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisAddr,
		DB:   cfg.Cache.RedisDB,
	})
	logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using Redis record cache")
	return rediscache.New(client, cfg.Cache.KeyPrefix, logger)
}

// newAuthenticator discovers the identity service's JWKS endpoint and builds
// the token-verifying middleware.
func newAuthenticator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*api.Authenticator, error) {
	sanitizedIdentityURL := strings.Trim(cfg.IdentityServiceURL, "\"")
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(sanitizedIdentityURL, "RS256", logger)
	if err != nil {
		return nil, fmt.Errorf("JWT configuration discovery failed: %w", err)
	}
	return api.NewAuthenticator(ctx, jwksURL, logger)
}
