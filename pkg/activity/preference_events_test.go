package activity

import (
	"testing"
	"time"
)

func TestBuildPreferenceEvents(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	input := PreferenceEventInput{
		ActorID:    " actor ",
		Namespace:  " IC ",
		SnapshotID: "snap-1",
		Keys:       map[string]int{"String": 3, "Long": 2},
		Metadata:   map[string]any{"custom": "value"},
		OccurredAt: when,
	}

	cases := []struct {
		name  string
		build func(PreferenceEventInput) Event
		verb  string
	}{
		{name: "stored", build: BuildPreferencesStoredEvent, verb: VerbPreferencesStored},
		{name: "pruned", build: BuildPreferencesPrunedEvent, verb: VerbPreferencesPruned},
		{name: "cleared", build: BuildPreferencesClearedEvent, verb: VerbPreferencesCleared},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := tc.build(input)
			if event.Verb != tc.verb {
				t.Fatalf("expected verb %s got %s", tc.verb, event.Verb)
			}
			if event.ObjectType != ObjectTypePreferences || event.ObjectID != "IC" {
				t.Fatalf("unexpected object fields: %+v", event)
			}
			if event.ActorID != "actor" {
				t.Fatalf("expected trimmed actor, got %q", event.ActorID)
			}
			if event.Metadata["snapshot_id"] != "snap-1" {
				t.Fatalf("expected snapshot_id, got %v", event.Metadata["snapshot_id"])
			}
			if event.Metadata["key_count"] != 5 {
				t.Fatalf("expected key_count 5, got %v", event.Metadata["key_count"])
			}
			keys, ok := event.Metadata["keys"].(map[string]int)
			if !ok || keys["String"] != 3 || keys["Long"] != 2 {
				t.Fatalf("unexpected keys metadata: %v", event.Metadata["keys"])
			}
			if event.Metadata["custom"] != "value" {
				t.Fatalf("expected custom metadata passthrough")
			}
			if !event.OccurredAt.Equal(when) {
				t.Fatalf("expected occurred_at preserved")
			}
		})
	}

	if BuildPreferencesStoredEvent(PreferenceEventInput{Namespace: "x"}).Metadata != nil {
		t.Fatalf("expected nil metadata when nothing is set")
	}
}
