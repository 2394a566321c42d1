// Package permission translates CRUD intents on key records into checks
// against the external permission authority.
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Gate wraps a Checker with the registry's two check modes. Writes
// (create, update, revoke) hard-fail on denial; reads soft-deny, narrowing
// the response to public fields instead of erroring. The internal actor
// bypasses the authority entirely and the anonymous actor never reaches it.
type Gate struct {
	checker keyregistry.Checker
	logger  zerolog.Logger
}

// NewGate creates a gate over the given authority.
func NewGate(checker keyregistry.Checker, logger zerolog.Logger) *Gate {
	return &Gate{
		checker: checker,
		logger:  logger.With().Str("component", "permission_gate").Logger(),
	}
}

// Require performs the hard check used by create, update and revoke.
// Anonymous actors are always denied. Authority transport failures propagate
// unchanged; the caller owns retry policy.
func (g *Gate) Require(ctx context.Context, actor keyregistry.Actor, perm keyregistry.Permission, owner string) error {
	if actor.IsInternal() {
		return nil
	}
	if actor.IsAnonymous() {
		return fmt.Errorf("%w: unauthenticated", keyregistry.ErrPermissionDenied)
	}
	if err := g.checker.Check(ctx, actor.ID(), perm, owner); err != nil {
		if errors.Is(err, keyregistry.ErrPermissionDenied) {
			g.logger.Debug().
				Str("actor", actor.ID()).
				Str("permission", string(perm)).
				Str("owner", owner).
				Msg("Permission denied")
		}
		return err
	}
	return nil
}

// CanReadPrivate performs the soft check on read paths: whether the actor may
// see private key material belonging to owner. Denial is an answer, not an
// error. An authority failure is treated as a denial and logged, since
// erring open would leak private material.
func (g *Gate) CanReadPrivate(ctx context.Context, actor keyregistry.Actor, owner string) bool {
	if actor.IsInternal() {
		return true
	}
	if actor.IsAnonymous() {
		return false
	}
	err := g.checker.Check(ctx, actor.ID(), keyregistry.PermissionAccess, owner)
	if err == nil {
		return true
	}
	if !errors.Is(err, keyregistry.ErrPermissionDenied) {
		g.logger.Warn().Err(err).
			Str("actor", actor.ID()).
			Str("owner", owner).
			Msg("Permission authority failed on read, treating as denial")
	}
	return false
}
