// Package test provides helpers for end-to-end testing of the key registry.
package test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-key-registry/internal/api"
	"github.com/tinywideclouds/go-key-registry/internal/cache/memcache"
	"github.com/tinywideclouds/go-key-registry/internal/idgen"
	"github.com/tinywideclouds/go-key-registry/internal/permission"
	"github.com/tinywideclouds/go-key-registry/internal/storage/inmemory"
	"github.com/tinywideclouds/go-key-registry/keyregistry"
	"github.com/tinywideclouds/go-key-registry/keyregistry/config"
	registry "github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// TestBaseURI is the key id base used by servers built with NewTestServer.
const TestBaseURI = "https://registry.test"

// NewTestServer creates and starts a new httptest.Server for end-to-end
// testing. It assembles the full registry over an in-memory store and cache
// with the provided auth middlewares, and returns the lifecycle engine for
// direct seeding.
func NewTestServer(
	requireAuth func(http.Handler) http.Handler,
	optionalAuth func(http.Handler) http.Handler,
) (*httptest.Server, *keyregistry.Service) {
	cfg := &config.Config{
		HTTPListenAddr: ":0",
		BaseURI:        TestBaseURI,
		KeyBasePath:    "/keys",
		Cache:          config.CacheConfig{Enabled: true, TTLSeconds: 300},
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: []string{"*"},
			Role:           middleware.CorsRoleDefault,
		},
	}
	logger := zerolog.Nop()

	service := keyregistry.NewService(
		cfg,
		inmemory.New(),
		memcache.New(),
		permission.NewOwnerChecker(nil),
		idgen.New(),
		logger,
	)

	wrapper := keyregistry.New(cfg, service, requireAuth, optionalAuth, logger)
	return httptest.NewServer(wrapper.Mux()), service
}

var errBadToken = errors.New("invalid bearer token")

// resolveActor maps the Authorization header to an actor without verifying
// the signature. Test-only; stands in for the JWKS-backed middleware.
func resolveActor(r *http.Request) (registry.Actor, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return registry.Anonymous(), false, nil
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return registry.Anonymous(), true, errBadToken
	}
	token, err := jwt.ParseInsecure([]byte(tokenString))
	if err != nil || token.Subject() == "" {
		return registry.Anonymous(), true, errBadToken
	}
	return registry.Identity(token.Subject()), true, nil
}

// MockRequireAuth simulates the strict auth middleware: no valid token, no
// entry.
func MockRequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, presented, err := resolveActor(r)
		if !presented || err != nil {
			response.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(api.ContextWithActor(r.Context(), actor)))
	})
}

// MockOptionalAuth simulates the lenient auth middleware: absent credentials
// pass through as the anonymous actor, invalid ones are still rejected.
func MockOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, presented, err := resolveActor(r)
		if presented && err != nil {
			response.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(api.ContextWithActor(r.Context(), actor)))
	})
}
