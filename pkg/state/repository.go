package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/activity"
)

const (
	metaSnapshotID = "SnapshotID"
	metaActorID    = "ActorID"
	metaUpdatedAt  = "UpdatedAt"
	metaWritten    = "Written"
	metaPruned     = "Pruned"
)

// Repository persists preference trees per namespace and keeps each
// namespace free of keys left by earlier generations.
type Repository struct {
	kv       prefs.TypedKeyValueStore
	emitter  *activity.Emitter
	logger   prefs.CodecLogger
	maxDepth int
	now      func() time.Time
	nextID   func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewRepository builds a repository over kv.
func NewRepository(kv prefs.TypedKeyValueStore, opts ...Option) *Repository {
	r := &Repository{
		kv:     kv,
		logger: prefs.CodecLoggerFunc(nil),
		now:    time.Now,
		nextID: defaultSnapshotID,
		locks:  map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Store returns the underlying key/value store.
func (r *Repository) Store() prefs.TypedKeyValueStore {
	return r.kv
}

func (r *Repository) lock(namespace string) func() {
	r.locksMu.Lock()
	mu, ok := r.locks[namespace]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[namespace] = mu
	}
	r.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (r *Repository) prepare(ref Ref) (string, error) {
	if r == nil || r.kv == nil {
		return "", fmt.Errorf("state: store is required")
	}
	return ref.Identifier()
}

func (r *Repository) storeOptions() []prefs.StoreOption {
	opts := []prefs.StoreOption{prefs.WithCodecLogger(r.logger)}
	if r.maxDepth > 0 {
		opts = append(opts, prefs.WithMaxDepth(r.maxDepth))
	}
	return opts
}

// Save stores node under ref and prunes the keys of the namespace the
// store did not write. An empty or nil node clears the namespace.
//
// When the store fails, nothing is pruned: the namespace may hold a mix of
// both generations until the next successful Save. A hook failure is
// returned together with the saved Meta.
func (r *Repository) Save(ctx context.Context, ref Ref, node *prefs.Node, meta Meta) (Meta, error) {
	namespace, err := r.prepare(ref)
	if err != nil {
		return Meta{}, err
	}
	unlock := r.lock(namespace)
	defer unlock()
	return r.save(ctx, namespace, node, meta)
}

func (r *Repository) save(ctx context.Context, namespace string, node *prefs.Node, meta Meta) (Meta, error) {
	if node == nil || node.IsEmpty() {
		return r.clear(ctx, namespace, meta)
	}

	written, err := node.Store(ctx, r.kv, namespace, r.storeOptions()...)
	if err != nil {
		return Meta{}, fmt.Errorf("state: store %q: %w", namespace, err)
	}
	pruner := prefs.NewPruner(r.kv, prefs.PrunerWithLogger(r.logger))
	pruned, err := pruner.DeleteMatching(ctx, prefs.StaleKeys(namespace, written))
	if err != nil {
		return Meta{}, fmt.Errorf("state: prune %q: %w", namespace, err)
	}

	out := Meta{
		SnapshotID: meta.SnapshotID,
		ActorID:    meta.ActorID,
		UpdatedAt:  meta.UpdatedAt,
		Written:    written.Len(),
		Pruned:     pruned.Len(),
	}
	if out.SnapshotID == "" {
		out.SnapshotID = r.nextID()
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = r.now()
	}
	if err := r.writeMeta(ctx, namespace, out); err != nil {
		return Meta{}, err
	}

	input := activity.PreferenceEventInput{
		ActorID:    out.ActorID,
		Namespace:  namespace,
		SnapshotID: out.SnapshotID,
		Keys:       keyCounts(written),
		OccurredAt: out.UpdatedAt,
	}
	emitErr := r.emitter.Emit(ctx, activity.BuildPreferencesStoredEvent(input))
	if out.Pruned > 0 {
		input.Keys = keyCounts(pruned)
		emitErr = errors.Join(emitErr, r.emitter.Emit(ctx, activity.BuildPreferencesPrunedEvent(input)))
	}
	if emitErr != nil {
		return out, fmt.Errorf("state: activity for %q: %w", namespace, emitErr)
	}
	return out, nil
}

// Load returns the tree stored under ref and its metadata. ok is false
// when nothing is stored there.
func (r *Repository) Load(ctx context.Context, ref Ref) (*prefs.Node, Meta, bool, error) {
	namespace, err := r.prepare(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}
	unlock := r.lock(namespace)
	defer unlock()
	return r.load(ctx, namespace)
}

func (r *Repository) load(ctx context.Context, namespace string) (*prefs.Node, Meta, bool, error) {
	node, ok, err := prefs.From(ctx, r.kv, namespace, r.storeOptions()...)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: load %q: %w", namespace, err)
	}
	if !ok {
		return nil, Meta{}, false, nil
	}
	meta, err := r.readMeta(ctx, namespace)
	if err != nil {
		return nil, Meta{}, false, err
	}
	return node, meta, true, nil
}

// Mutate loads the tree under ref (or an empty one), applies fn and saves
// the result while holding the namespace lock. A non-empty meta.SnapshotID
// must match the stored snapshot. Nothing is saved when fn fails.
func (r *Repository) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*prefs.Node, Meta, error) {
	namespace, err := r.prepare(ref)
	if err != nil {
		return nil, Meta{}, err
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}
	unlock := r.lock(namespace)
	defer unlock()

	node, loadedMeta, ok, err := r.load(ctx, namespace)
	if err != nil {
		return nil, Meta{}, err
	}
	if !ok {
		node = prefs.NewNode()
		loadedMeta = Meta{}
	}
	if meta.SnapshotID != "" && loadedMeta.SnapshotID != "" && meta.SnapshotID != loadedMeta.SnapshotID {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrSnapshotMismatch, meta.SnapshotID, loadedMeta.SnapshotID)
	}

	if err := fn(node); err != nil {
		return nil, loadedMeta, err
	}

	saveMeta := mergeMeta(Meta{ActorID: loadedMeta.ActorID}, Meta{ActorID: meta.ActorID, UpdatedAt: meta.UpdatedAt})
	savedMeta, err := r.save(ctx, namespace, node, saveMeta)
	if err != nil {
		return nil, loadedMeta, err
	}
	return node, savedMeta, nil
}

// Clear deletes every key of the namespace, metadata included.
func (r *Repository) Clear(ctx context.Context, ref Ref) (Meta, error) {
	namespace, err := r.prepare(ref)
	if err != nil {
		return Meta{}, err
	}
	unlock := r.lock(namespace)
	defer unlock()
	return r.clear(ctx, namespace, Meta{})
}

func (r *Repository) clear(ctx context.Context, namespace string, meta Meta) (Meta, error) {
	pruner := prefs.NewPruner(r.kv, prefs.PrunerWithLogger(r.logger))
	deleted, err := pruner.DeleteMatching(ctx, prefs.Namespace(namespace))
	if err != nil {
		return Meta{}, fmt.Errorf("state: clear %q: %w", namespace, err)
	}
	if err := r.deleteMeta(ctx, namespace); err != nil {
		return Meta{}, err
	}

	out := Meta{ActorID: meta.ActorID, UpdatedAt: meta.UpdatedAt, Pruned: deleted.Len()}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = r.now()
	}
	err = r.emitter.Emit(ctx, activity.BuildPreferencesClearedEvent(activity.PreferenceEventInput{
		ActorID:    out.ActorID,
		Namespace:  namespace,
		Keys:       keyCounts(deleted),
		OccurredAt: out.UpdatedAt,
	}))
	if err != nil {
		return out, fmt.Errorf("state: activity for %q: %w", namespace, err)
	}
	return out, nil
}

func metaKey(namespace, field string) string {
	return namespace + prefs.TypeValueSeparator + field
}

func (r *Repository) writeMeta(ctx context.Context, namespace string, meta Meta) error {
	strs := r.kv.Strings()
	if err := strs.Set(ctx, metaKey(namespace, metaSnapshotID), meta.SnapshotID); err != nil {
		return fmt.Errorf("state: write metadata %q: %w", namespace, err)
	}
	if meta.ActorID != "" {
		if err := strs.Set(ctx, metaKey(namespace, metaActorID), meta.ActorID); err != nil {
			return fmt.Errorf("state: write metadata %q: %w", namespace, err)
		}
	} else if err := strs.Delete(ctx, metaKey(namespace, metaActorID)); err != nil {
		return fmt.Errorf("state: write metadata %q: %w", namespace, err)
	}
	if err := r.kv.Longs().Set(ctx, metaKey(namespace, metaUpdatedAt), meta.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("state: write metadata %q: %w", namespace, err)
	}
	if err := r.kv.Integers().Set(ctx, metaKey(namespace, metaWritten), int32(meta.Written)); err != nil {
		return fmt.Errorf("state: write metadata %q: %w", namespace, err)
	}
	if err := r.kv.Integers().Set(ctx, metaKey(namespace, metaPruned), int32(meta.Pruned)); err != nil {
		return fmt.Errorf("state: write metadata %q: %w", namespace, err)
	}
	return nil
}

func (r *Repository) readMeta(ctx context.Context, namespace string) (Meta, error) {
	var meta Meta
	wrap := func(err error) error {
		return fmt.Errorf("state: read metadata %q: %w", namespace, err)
	}

	snapshotID, _, err := r.kv.Strings().Get(ctx, metaKey(namespace, metaSnapshotID))
	if err != nil {
		return Meta{}, wrap(err)
	}
	meta.SnapshotID = snapshotID
	actorID, _, err := r.kv.Strings().Get(ctx, metaKey(namespace, metaActorID))
	if err != nil {
		return Meta{}, wrap(err)
	}
	meta.ActorID = actorID
	updatedAt, ok, err := r.kv.Longs().Get(ctx, metaKey(namespace, metaUpdatedAt))
	if err != nil {
		return Meta{}, wrap(err)
	}
	if ok {
		meta.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	}
	written, _, err := r.kv.Integers().Get(ctx, metaKey(namespace, metaWritten))
	if err != nil {
		return Meta{}, wrap(err)
	}
	meta.Written = int(written)
	pruned, _, err := r.kv.Integers().Get(ctx, metaKey(namespace, metaPruned))
	if err != nil {
		return Meta{}, wrap(err)
	}
	meta.Pruned = int(pruned)
	return meta, nil
}

func (r *Repository) deleteMeta(ctx context.Context, namespace string) error {
	for _, field := range []string{metaSnapshotID, metaActorID} {
		if err := r.kv.Strings().Delete(ctx, metaKey(namespace, field)); err != nil {
			return fmt.Errorf("state: delete metadata %q: %w", namespace, err)
		}
	}
	if err := r.kv.Longs().Delete(ctx, metaKey(namespace, metaUpdatedAt)); err != nil {
		return fmt.Errorf("state: delete metadata %q: %w", namespace, err)
	}
	for _, field := range []string{metaWritten, metaPruned} {
		if err := r.kv.Integers().Delete(ctx, metaKey(namespace, field)); err != nil {
			return fmt.Errorf("state: delete metadata %q: %w", namespace, err)
		}
	}
	return nil
}

func keyCounts(keys prefs.WrittenKeys) map[string]int {
	counts := map[string]int{}
	for _, t := range prefs.PrimitiveTypes() {
		if n := len(keys[t]); n > 0 {
			counts[t.String()] = n
		}
	}
	return counts
}
