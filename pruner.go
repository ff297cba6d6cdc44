package prefs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Matcher decides whether the pruner deletes a raw store key.
type Matcher interface {
	Match(ctx context.Context, t PreferenceType, key string) (bool, error)
}

// MatcherFunc adapts a plain predicate to Matcher.
type MatcherFunc func(t PreferenceType, key string) bool

// Match implements Matcher.
func (f MatcherFunc) Match(_ context.Context, t PreferenceType, key string) (bool, error) {
	if f == nil {
		return false, nil
	}
	return f(t, key), nil
}

// StaleKeys matches keys inside namespace that the latest Store call for
// that namespace did not write. Keys outside the namespace never match.
func StaleKeys(namespace string, written WrittenKeys) MatcherFunc {
	prefix := NamespacePrefix(namespace)
	return func(t PreferenceType, key string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		return !written.Contains(t, key)
	}
}

// Namespace matches every key stored under namespace.
func Namespace(namespace string) MatcherFunc {
	prefix := NamespacePrefix(namespace)
	return func(_ PreferenceType, key string) bool {
		return strings.HasPrefix(key, prefix)
	}
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// PrunerWithLogger attaches a logger that receives one OpPrune event per
// sweep.
func PrunerWithLogger(logger CodecLogger) PrunerOption {
	return func(p *Pruner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pruner sweeps a store and deletes keys selected by a Matcher. Deletions
// are applied one at a time as they are found; a failure mid-sweep leaves
// the earlier deletions in place.
type Pruner struct {
	kv     TypedKeyValueStore
	logger CodecLogger
}

// NewPruner builds a pruner over kv. A TrackingStore is unwrapped so the
// sweep always sees the real store.
func NewPruner(kv TypedKeyValueStore, opts ...PrunerOption) *Pruner {
	if tracker, ok := kv.(*TrackingStore); ok {
		kv = tracker.Unwrap()
	}
	p := &Pruner{kv: kv, logger: noopCodecLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// DeleteMatching deletes every key, of every primitive type, that m
// matches and returns the deleted keys.
func (p *Pruner) DeleteMatching(ctx context.Context, m Matcher) (WrittenKeys, error) {
	if m == nil {
		return nil, fmt.Errorf("prefs: matcher is required")
	}
	deleted := newWrittenKeys()
	start := time.Now()
	err := p.sweep(ctx, m, deleted)
	p.logger.LogCodec(CodecLogEvent{
		Op:       OpPrune,
		Keys:     deleted.Len(),
		Duration: time.Since(start),
		Err:      err,
	})
	return deleted, err
}

func (p *Pruner) sweep(ctx context.Context, m Matcher, deleted WrittenKeys) error {
	if err := pruneSpace(ctx, p.kv.Booleans(), TypeBoolean, m, deleted); err != nil {
		return err
	}
	if err := pruneSpace(ctx, p.kv.Bytes(), TypeByte, m, deleted); err != nil {
		return err
	}
	if err := pruneSpace(ctx, p.kv.Integers(), TypeInteger, m, deleted); err != nil {
		return err
	}
	if err := pruneSpace(ctx, p.kv.Longs(), TypeLong, m, deleted); err != nil {
		return err
	}
	if err := pruneSpace(ctx, p.kv.Shorts(), TypeShort, m, deleted); err != nil {
		return err
	}
	return pruneSpace(ctx, p.kv.Strings(), TypeString, m, deleted)
}

func pruneSpace[T Scalar](ctx context.Context, space KeySpace[T], t PreferenceType, m Matcher, deleted WrittenKeys) error {
	keys, err := space.Keys(ctx)
	if err != nil {
		return wrapStoreError("keys", t, "", err)
	}
	for _, key := range keys {
		ok, err := m.Match(ctx, t, key)
		if err != nil {
			return fmt.Errorf("prefs: match %s %q: %w", t, key, err)
		}
		if !ok {
			continue
		}
		if err := space.Delete(ctx, key); err != nil {
			return wrapStoreError("delete", t, key, err)
		}
		deleted.add(t, key)
	}
	return nil
}

// ListKeys enumerates every key currently present in kv, per primitive
// type.
func ListKeys(ctx context.Context, kv TypedKeyValueStore) (WrittenKeys, error) {
	out := newWrittenKeys()
	delete(out, TypeChild)
	if err := listSpace(ctx, kv.Booleans(), TypeBoolean, out); err != nil {
		return nil, err
	}
	if err := listSpace(ctx, kv.Bytes(), TypeByte, out); err != nil {
		return nil, err
	}
	if err := listSpace(ctx, kv.Integers(), TypeInteger, out); err != nil {
		return nil, err
	}
	if err := listSpace(ctx, kv.Longs(), TypeLong, out); err != nil {
		return nil, err
	}
	if err := listSpace(ctx, kv.Shorts(), TypeShort, out); err != nil {
		return nil, err
	}
	if err := listSpace(ctx, kv.Strings(), TypeString, out); err != nil {
		return nil, err
	}
	return out, nil
}

func listSpace[T Scalar](ctx context.Context, space KeySpace[T], t PreferenceType, out WrittenKeys) error {
	keys, err := space.Keys(ctx)
	if err != nil {
		return wrapStoreError("keys", t, "", err)
	}
	for _, key := range keys {
		out.add(t, key)
	}
	return nil
}

// Dump writes every key of the pruner's store to w, grouped by type.
func (p *Pruner) Dump(ctx context.Context, w io.Writer) error {
	keys, err := ListKeys(ctx, p.kv)
	if err != nil {
		return err
	}
	total := 0
	fmt.Fprintln(w, "--- preference keys start ---")
	for _, t := range PrimitiveTypes() {
		set := keys[t]
		if len(set) == 0 {
			continue
		}
		fmt.Fprintf(w, "type = %s\n", t)
		for _, key := range set.Sorted() {
			fmt.Fprintln(w, key)
			total++
		}
	}
	_, err = fmt.Fprintf(w, "num keys = %d\n--- preference keys end ---\n", total)
	return err
}
