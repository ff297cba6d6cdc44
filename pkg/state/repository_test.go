package state_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/activity"
	"github.com/goliatone/go-prefs/pkg/kv"
	"github.com/goliatone/go-prefs/pkg/state"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newRepo(store prefs.TypedKeyValueStore, opts ...state.Option) *state.Repository {
	ids := 0
	base := []state.Option{
		state.WithClock(func() time.Time { return fixedNow }),
		state.WithSnapshotIDs(func() string {
			ids++
			return fmt.Sprintf("snap-%d", ids)
		}),
	}
	return state.NewRepository(store, append(base, opts...)...)
}

func identities(t *testing.T, anchors ...string) *prefs.Node {
	t.Helper()
	list := prefs.NewNode()
	for _, anchor := range anchors {
		ii := prefs.NewNode()
		mustNoErr(t, ii.SetString("State", "Active"))
		mustNoErr(t, ii.SetLong("CreationDate", 1700000000000))
		mustNoErr(t, list.SetChildObject(anchor, ii))
	}
	root := prefs.NewNode()
	mustNoErr(t, root.SetChildObject("Identities", list))
	return root
}

func TestRepositorySaveLoadMeta(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(kv.NewMemoryStore())
	ref := state.Ref{Namespace: "IC"}

	meta, err := repo.Save(ctx, ref, identities(t, "10000"), state.Meta{ActorID: "tester"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID != "snap-1" || !meta.UpdatedAt.Equal(fixedNow) || meta.ActorID != "tester" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	// IC#Child, IC#Child$Identities#Child, one String index and member,
	// one Long index (String space) and member.
	if meta.Written != 6 {
		t.Fatalf("expected 6 written keys, got %d", meta.Written)
	}

	node, loaded, ok, err := repo.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if !node.Equal(identities(t, "10000")) {
		t.Fatalf("unexpected tree: %v", node.ToMap())
	}
	if loaded.SnapshotID != meta.SnapshotID || loaded.ActorID != meta.ActorID ||
		!loaded.UpdatedAt.Equal(meta.UpdatedAt) || loaded.Written != meta.Written || loaded.Pruned != meta.Pruned {
		t.Fatalf("expected persisted meta %+v, got %+v", meta, loaded)
	}
}

func TestRepositoryLoadAbsent(t *testing.T) {
	repo := newRepo(kv.NewMemoryStore())
	node, meta, ok, err := repo.Load(context.Background(), state.Ref{Namespace: "Nothing"})
	if err != nil || ok || node != nil || meta != (state.Meta{}) {
		t.Fatalf("expected absent namespace, got node=%v meta=%+v ok=%t err=%v", node, meta, ok, err)
	}
}

func TestRepositorySaveEmptyClearsNamespace(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	mustNoErr(t, store.Strings().Set(ctx, "ICX#String", "neighbour"))
	repo := newRepo(store)
	ref := state.Ref{Namespace: "IC"}

	if _, err := repo.Save(ctx, ref, identities(t, "1", "2"), state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := repo.Save(ctx, ref, prefs.NewNode(), state.Meta{})
	if err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if meta.Pruned == 0 || meta.SnapshotID != "" {
		t.Fatalf("unexpected clear meta: %+v", meta)
	}
	if store.Len() != 1 {
		t.Fatalf("expected only the neighbour key left, got %d keys", store.Len())
	}
	if _, _, ok, _ := repo.Load(ctx, ref); ok {
		t.Fatalf("expected namespace to be empty")
	}
}

func TestRepositoryClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	capture := &activity.CaptureHook{}
	repo := newRepo(store, state.WithActivityHooks(activity.Hooks{capture}, ""))
	ref := state.Ref{Namespace: "CanisterInterfaceCache"}

	if _, err := repo.Save(ctx, ref, identities(t, "a"), state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := repo.Clear(ctx, ref)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if meta.Pruned != 6 {
		t.Fatalf("expected 6 deleted keys, got %d", meta.Pruned)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, metadata included; got %d keys", store.Len())
	}
	verbs := capture.Verbs()
	if len(verbs) != 2 || verbs[1] != activity.VerbPreferencesCleared {
		t.Fatalf("unexpected verbs: %v", verbs)
	}
	if capture.Events[1].Channel != activity.DefaultChannel {
		t.Fatalf("expected default channel, got %q", capture.Events[1].Channel)
	}
}

func TestRepositoryEmitsStoredAndPruned(t *testing.T) {
	ctx := context.Background()
	capture := &activity.CaptureHook{}
	repo := newRepo(kv.NewMemoryStore(), state.WithActivityHooks(activity.Hooks{capture}, "prefs"))
	ref := state.Ref{Namespace: "IC"}

	if _, err := repo.Save(ctx, ref, identities(t, "1", "2"), state.Meta{ActorID: "alice"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.Save(ctx, ref, identities(t, "1"), state.Meta{ActorID: "alice"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	want := []string{activity.VerbPreferencesStored, activity.VerbPreferencesStored, activity.VerbPreferencesPruned}
	got := capture.Verbs()
	if len(got) != len(want) {
		t.Fatalf("expected verbs %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected verbs %v, got %v", want, got)
		}
	}
	pruned := capture.Events[2]
	if pruned.ObjectID != "IC" || pruned.ActorID != "alice" || pruned.Channel != "prefs" {
		t.Fatalf("unexpected pruned event: %+v", pruned)
	}
	if pruned.Metadata["snapshot_id"] != "snap-2" {
		t.Fatalf("expected second snapshot id, got %v", pruned.Metadata["snapshot_id"])
	}
	keys := pruned.Metadata["keys"].(map[string]int)
	if keys["String"] != 3 || keys["Long"] != 1 {
		t.Fatalf("unexpected pruned counts: %v", keys)
	}
}

func TestRepositoryHookErrorStillSaves(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("hook down")
	hook := &activity.CaptureHook{Err: boom}
	repo := newRepo(kv.NewMemoryStore(), state.WithActivityHooks(activity.Hooks{hook}, ""))
	ref := state.Ref{Namespace: "IC"}

	meta, err := repo.Save(ctx, ref, identities(t, "1"), state.Meta{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if meta.SnapshotID == "" {
		t.Fatalf("expected saved meta alongside hook error")
	}
	if _, _, ok, _ := repo.Load(ctx, ref); !ok {
		t.Fatalf("expected tree to be saved despite hook error")
	}
}

type failingLongs struct {
	*kv.MemoryStore
	err error
}

func (s failingLongs) Longs() prefs.KeySpace[int64] {
	return failingSpace{KeySpace: s.MemoryStore.Longs(), err: s.err}
}

type failingSpace struct {
	prefs.KeySpace[int64]
	err error
}

func (f failingSpace) Set(context.Context, string, int64) error {
	return f.err
}

func TestRepositoryStoreFailureSkipsPrune(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	ref := state.Ref{Namespace: "IC"}
	if _, err := newRepo(mem).Save(ctx, ref, identities(t, "1", "2"), state.Meta{}); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	before := mem.Len()

	boom := errors.New("disk full")
	repo := newRepo(failingLongs{MemoryStore: mem, err: boom})
	_, err := repo.Save(ctx, ref, identities(t, "3"), state.Meta{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	var storeErr *prefs.StoreError
	if !errors.As(err, &storeErr) || storeErr.Type != prefs.TypeLong {
		t.Fatalf("expected *prefs.StoreError for Long, got %v", err)
	}
	if mem.Len() < before {
		t.Fatalf("failed save must not prune: %d keys before, %d after", before, mem.Len())
	}
}

func TestRepositoryMutate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(kv.NewMemoryStore())
	ref := state.Ref{Namespace: "IC"}

	node, meta, err := repo.Mutate(ctx, ref, state.Meta{ActorID: "bob"}, func(n *prefs.Node) error {
		return n.SetString("Version", "1")
	})
	if err != nil {
		t.Fatalf("mutate on empty namespace: %v", err)
	}
	if v, _ := node.GetString("Version"); v != "1" || meta.SnapshotID != "snap-1" {
		t.Fatalf("unexpected first mutation: %v %+v", node.ToMap(), meta)
	}

	_, _, err = repo.Mutate(ctx, ref, state.Meta{SnapshotID: "stale"}, func(n *prefs.Node) error {
		return n.SetString("Version", "2")
	})
	if !errors.Is(err, state.ErrSnapshotMismatch) {
		t.Fatalf("expected snapshot mismatch, got %v", err)
	}

	fail := errors.New("rejected")
	if _, _, err := repo.Mutate(ctx, ref, state.Meta{}, func(*prefs.Node) error { return fail }); !errors.Is(err, fail) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	node, meta, err = repo.Mutate(ctx, ref, state.Meta{SnapshotID: "snap-1"}, func(n *prefs.Node) error {
		return n.SetString("Version", "2")
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if v, _ := node.GetString("Version"); v != "2" || meta.SnapshotID != "snap-2" || meta.ActorID != "bob" {
		t.Fatalf("unexpected second mutation: %v %+v", node.ToMap(), meta)
	}

	if _, _, err := repo.Mutate(ctx, ref, state.Meta{}, nil); err == nil {
		t.Fatalf("expected error for nil mutator")
	}
}

func TestRepositoryRequiresStore(t *testing.T) {
	repo := state.NewRepository(nil)
	if _, err := repo.Save(context.Background(), state.Ref{Namespace: "IC"}, identities(t, "1"), state.Meta{}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestRepositoryConcurrentSavesLeaveOneGeneration(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := state.NewRepository(store)
	ref := state.Ref{Namespace: "IC"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			anchor := fmt.Sprintf("anchor%d", i)
			if _, err := repo.Save(ctx, ref, identities(t, anchor), state.Meta{}); err != nil {
				t.Errorf("save %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	node, _, ok, err := repo.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	list, _ := node.GetChildObject("Identities")
	if got := list.ChildObjectKeys(); len(got) != 1 {
		t.Fatalf("expected exactly one generation to survive, got anchors %v", got)
	}
	// Tree keys plus four metadata keys (no ActorID).
	if store.Len() != 6+4 {
		t.Fatalf("expected 10 keys, got %d", store.Len())
	}
}
