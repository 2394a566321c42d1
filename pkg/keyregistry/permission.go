package keyregistry

import "context"

// Permission names the CRUD intents checked against the authorization
// collaborator. The set is fixed.
type Permission string

const (
	PermissionCreate Permission = "PUBLIC_KEY_CREATE"
	PermissionAccess Permission = "PUBLIC_KEY_ACCESS"
	PermissionEdit   Permission = "PUBLIC_KEY_EDIT"
	PermissionRemove Permission = "PUBLIC_KEY_REMOVE"
)

// Checker is the external permission authority. Check returns nil when the
// actor holds the permission for resources owned by owner, and
// ErrPermissionDenied (possibly wrapped) otherwise. Sentinel actors never
// reach the checker; the gate resolves them first.
type Checker interface {
	Check(ctx context.Context, actorID string, permission Permission, owner string) error
}
