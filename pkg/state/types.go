package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	prefs "github.com/goliatone/go-prefs"
)

var ErrNamespaceRequired = errors.New("state: namespace is required")

// ErrSnapshotMismatch is returned by Mutate when the caller's expected
// snapshot id no longer matches the stored one.
var ErrSnapshotMismatch = errors.New("state: snapshot mismatch")

// Ref identifies one persisted preference tree.
type Ref struct {
	Namespace string
}

// Meta is storage-owned metadata describing the latest save generation.
type Meta struct {
	SnapshotID string    `json:"snapshot_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	Written    int       `json:"written,omitempty"`
	Pruned     int       `json:"pruned,omitempty"`
}

// Mutator edits a loaded tree in place before it is saved again.
type Mutator func(*prefs.Node) error

// Identifier returns the root key used for ref. The namespace must be non
// empty and free of reserved characters.
func (r Ref) Identifier() (string, error) {
	namespace := strings.TrimSpace(r.Namespace)
	if namespace == "" {
		return "", ErrNamespaceRequired
	}
	if namespace != r.Namespace {
		return "", fmt.Errorf("state: namespace %q has surrounding whitespace", r.Namespace)
	}
	if err := prefs.ValidateKey(namespace); err != nil {
		return "", fmt.Errorf("state: namespace %q: %w", namespace, err)
	}
	return namespace, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ActorID != "" {
		out.ActorID = override.ActorID
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	return out
}
