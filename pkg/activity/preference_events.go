package activity

import (
	"strings"
	"time"
)

const (
	VerbPreferencesStored  = "preferences.stored"
	VerbPreferencesPruned  = "preferences.pruned"
	VerbPreferencesCleared = "preferences.cleared"

	// ObjectTypePreferences is the object type of every preference event.
	// The object id is the namespace (root key).
	ObjectTypePreferences = "preferences"
)

// PreferenceEventInput describes the fields shared by preference lifecycle
// events.
type PreferenceEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Namespace  string
	SnapshotID string
	// Keys counts the keys written or deleted, per type name.
	Keys       map[string]int
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildPreferencesStoredEvent reports a completed Store of a namespace.
func BuildPreferencesStoredEvent(input PreferenceEventInput) Event {
	return buildPreferenceEvent(VerbPreferencesStored, input)
}

// BuildPreferencesPrunedEvent reports stale keys removed after a Store.
func BuildPreferencesPrunedEvent(input PreferenceEventInput) Event {
	return buildPreferenceEvent(VerbPreferencesPruned, input)
}

// BuildPreferencesClearedEvent reports every key of a namespace removed.
func BuildPreferencesClearedEvent(input PreferenceEventInput) Event {
	return buildPreferenceEvent(VerbPreferencesCleared, input)
}

func buildPreferenceEvent(verb string, input PreferenceEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.SnapshotID
	}
	if len(input.Keys) > 0 {
		metadata = ensureMetadata(metadata)
		counts := make(map[string]int, len(input.Keys))
		total := 0
		for name, n := range input.Keys {
			counts[name] = n
			total += n
		}
		metadata["keys"] = counts
		metadata["key_count"] = total
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypePreferences,
		ObjectID:   strings.TrimSpace(input.Namespace),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
