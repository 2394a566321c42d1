package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Authenticator verifies bearer tokens against the identity service's JWKS
// and resolves them to actors. Two middleware variants exist: Require for
// write routes, and Optional for read routes where an absent token means the
// anonymous actor.
type Authenticator struct {
	cache   *jwk.Cache
	jwksURL string
	logger  zerolog.Logger
}

// NewAuthenticator creates an authenticator that keeps the JWKS refreshed in
// the background. The initial fetch is performed eagerly so a misconfigured
// URL fails at startup, not on the first request.
func NewAuthenticator(ctx context.Context, jwksURL string, logger zerolog.Logger) (*Authenticator, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL %s: %w", jwksURL, err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}
	return &Authenticator{
		cache:   cache,
		jwksURL: jwksURL,
		logger:  logger.With().Str("component", "auth_middleware").Logger(),
	}, nil
}

var errNoToken = errors.New("no bearer token")

// actorFromRequest resolves the Authorization header to an actor. Returns
// errNoToken when no credentials were presented at all.
func (a *Authenticator) actorFromRequest(r *http.Request) (keyregistry.Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return keyregistry.Anonymous(), errNoToken
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return keyregistry.Anonymous(), errors.New("malformed authorization header")
	}

	keySet, err := a.cache.Get(r.Context(), a.jwksURL)
	if err != nil {
		return keyregistry.Anonymous(), fmt.Errorf("JWKS unavailable: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString), jwt.WithKeySet(keySet), jwt.WithValidate(true))
	if err != nil {
		return keyregistry.Anonymous(), fmt.Errorf("invalid token: %w", err)
	}
	subject := token.Subject()
	if subject == "" {
		return keyregistry.Anonymous(), errors.New("token has no subject")
	}
	return keyregistry.Identity(subject), nil
}

// Require rejects requests without a valid token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.actorFromRequest(r)
		if err != nil {
			a.logger.Debug().Err(err).Msg("Rejecting unauthenticated request")
			response.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Optional resolves a token when one is presented and otherwise passes the
// request through as anonymous. A token that is present but invalid is still
// rejected; absence of credentials is the only path to anonymity.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.actorFromRequest(r)
		if err != nil && !errors.Is(err, errNoToken) {
			a.logger.Debug().Err(err).Msg("Rejecting request with invalid token")
			response.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}
