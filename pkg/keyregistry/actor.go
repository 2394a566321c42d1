package keyregistry

// Actor is the identity an operation is performed on behalf of. Two
// sentinels exist besides real identities: the anonymous actor (an
// unauthenticated caller, treated as public) and the internal actor (a
// server-internal call that bypasses permission checks entirely). The zero
// value is anonymous.
type Actor struct {
	kind actorKind
	id   string
}

type actorKind int

const (
	actorAnonymous actorKind = iota
	actorInternal
	actorIdentity
)

// Anonymous returns the unauthenticated sentinel actor.
func Anonymous() Actor { return Actor{} }

// Internal returns the server-internal bypass actor. Never derive this from
// caller input.
func Internal() Actor { return Actor{kind: actorInternal} }

// Identity returns an actor for the given identity id.
func Identity(id string) Actor { return Actor{kind: actorIdentity, id: id} }

func (a Actor) IsAnonymous() bool { return a.kind == actorAnonymous }
func (a Actor) IsInternal() bool  { return a.kind == actorInternal }

// ID returns the identity id, or "" for the sentinels.
func (a Actor) ID() string { return a.id }

func (a Actor) String() string {
	switch a.kind {
	case actorInternal:
		return "<internal>"
	case actorIdentity:
		return a.id
	default:
		return "<anonymous>"
	}
}
