package permission

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// OwnerChecker is the default permission authority: actors hold every key
// permission for resources they own, and actors on the admin list hold every
// permission for everything.
type OwnerChecker struct {
	admins map[string]struct{}
}

// NewOwnerChecker creates a checker with the given admin actor ids.
func NewOwnerChecker(admins []string) *OwnerChecker {
	c := &OwnerChecker{admins: make(map[string]struct{}, len(admins))}
	for _, admin := range admins {
		c.admins[admin] = struct{}{}
	}
	return c
}

// Check grants when the actor is the resource owner or an admin.
func (c *OwnerChecker) Check(_ context.Context, actorID string, perm keyregistry.Permission, owner string) error {
	if actorID != "" && actorID == owner {
		return nil
	}
	if _, ok := c.admins[actorID]; ok {
		return nil
	}
	return fmt.Errorf("%w: actor %q does not hold %s for resources owned by %q",
		keyregistry.ErrPermissionDenied, actorID, perm, owner)
}
