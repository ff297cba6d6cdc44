package prefs

import (
	"context"
	"fmt"
	"time"
)

type codec struct {
	cfg     codecConfig
	rootKey string
	keys    int
}

// Store encodes n under rootKey and returns the keys written, per type.
// Child index keys are reported under TypeString, where they live, and
// again under TypeChild.
//
// Store never deletes anything: entries from an earlier generation that
// the current tree no longer produces stay in kv until pruned. An empty
// root is rejected with *EmptyObjectError before any write. Empty children
// are listed in their parent's index but write nothing of their own. When
// kv fails, the error is returned together with the keys written so far.
func (n *Node) Store(ctx context.Context, kv TypedKeyValueStore, rootKey string, opts ...StoreOption) (WrittenKeys, error) {
	cfg := applyStoreOptions(opts)
	if err := ValidateKey(rootKey); err != nil {
		return nil, err
	}
	if n == nil || n.IsEmpty() {
		return nil, &EmptyObjectError{RootKey: rootKey}
	}

	c := &codec{cfg: cfg, rootKey: rootKey}
	tracker := NewTrackingStore(kv)
	start := time.Now()
	err := c.store(ctx, tracker, n, rootKey, 1)
	written := tracker.Written()
	cfg.logger.LogCodec(CodecLogEvent{
		Op:       OpStore,
		RootKey:  rootKey,
		Keys:     written.Len(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return written, err
	}
	return written, nil
}

func (c *codec) store(ctx context.Context, tracker *TrackingStore, n *Node, prefix string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > c.cfg.maxDepth {
		return fmt.Errorf("%w: %d levels at %q", ErrMaxDepth, c.cfg.maxDepth, prefix)
	}

	strs := tracker.Strings()
	if err := storeScalars(ctx, strs, tracker.Booleans(), prefix, TypeBoolean, n.booleans); err != nil {
		return err
	}
	if err := storeScalars(ctx, strs, tracker.Bytes(), prefix, TypeByte, n.bytes); err != nil {
		return err
	}
	if err := storeScalars(ctx, strs, tracker.Integers(), prefix, TypeInteger, n.integers); err != nil {
		return err
	}
	if err := storeScalars(ctx, strs, tracker.Longs(), prefix, TypeLong, n.longs); err != nil {
		return err
	}
	if err := storeScalars(ctx, strs, tracker.Shorts(), prefix, TypeShort, n.shorts); err != nil {
		return err
	}
	if err := storeScalars(ctx, strs, strs, prefix, TypeString, n.strings); err != nil {
		return err
	}

	if len(n.children) == 0 {
		return nil
	}
	keys := sortedKeys(n.children)
	index := indexKey(prefix, TypeChild)
	if err := strs.Set(ctx, index, joinIndex(keys)); err != nil {
		return wrapStoreError("set", TypeString, index, err)
	}
	tracker.Note(TypeChild, index)
	for _, key := range keys {
		child := n.children[key]
		if child.IsEmpty() {
			continue
		}
		if err := c.store(ctx, tracker, child, ChildPrefix(prefix, key), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// storeScalars writes the index before the members. A failure in between
// leaves an index naming members that were never written; From skips those.
func storeScalars[T Scalar](ctx context.Context, strs KeySpace[string], space KeySpace[T], prefix string, t PreferenceType, m map[string]T) error {
	if len(m) == 0 {
		return nil
	}
	keys := sortedKeys(m)
	index := indexKey(prefix, t)
	if err := strs.Set(ctx, index, joinIndex(keys)); err != nil {
		return wrapStoreError("set", TypeString, index, err)
	}
	for _, key := range keys {
		member := memberKey(prefix, t, key)
		if err := space.Set(ctx, member, m[key]); err != nil {
			return wrapStoreError("set", t, member, err)
		}
	}
	return nil
}

// From rebuilds the node stored under rootKey. It returns false when
// nothing, or only an empty node, is stored there. The result shares no
// state with kv.
func From(ctx context.Context, kv TypedKeyValueStore, rootKey string, opts ...StoreOption) (*Node, bool, error) {
	cfg := applyStoreOptions(opts)
	if err := ValidateKey(rootKey); err != nil {
		return nil, false, err
	}

	c := &codec{cfg: cfg, rootKey: rootKey}
	n := NewNode()
	start := time.Now()
	err := c.load(ctx, kv, n, rootKey, 1)
	cfg.logger.LogCodec(CodecLogEvent{
		Op:       OpLoad,
		RootKey:  rootKey,
		Keys:     c.keys,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, false, err
	}
	if n.IsEmpty() {
		return nil, false, nil
	}
	return n, true, nil
}

func (c *codec) load(ctx context.Context, kv TypedKeyValueStore, n *Node, prefix string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > c.cfg.maxDepth {
		return fmt.Errorf("%w: %d levels at %q", ErrMaxDepth, c.cfg.maxDepth, prefix)
	}

	strs := kv.Strings()
	if err := loadScalars(ctx, c, strs, kv.Booleans(), prefix, TypeBoolean, n.booleans); err != nil {
		return err
	}
	if err := loadScalars(ctx, c, strs, kv.Bytes(), prefix, TypeByte, n.bytes); err != nil {
		return err
	}
	if err := loadScalars(ctx, c, strs, kv.Integers(), prefix, TypeInteger, n.integers); err != nil {
		return err
	}
	if err := loadScalars(ctx, c, strs, kv.Longs(), prefix, TypeLong, n.longs); err != nil {
		return err
	}
	if err := loadScalars(ctx, c, strs, kv.Shorts(), prefix, TypeShort, n.shorts); err != nil {
		return err
	}
	if err := loadScalars(ctx, c, strs, strs, prefix, TypeString, n.strings); err != nil {
		return err
	}

	index := indexKey(prefix, TypeChild)
	value, ok, err := strs.Get(ctx, index)
	if err != nil {
		return wrapStoreError("get", TypeString, index, err)
	}
	if !ok {
		return nil
	}
	c.keys++
	for _, key := range splitIndex(value) {
		child := NewNode()
		if err := c.load(ctx, kv, child, ChildPrefix(prefix, key), depth+1); err != nil {
			return err
		}
		n.children[key] = child
	}
	return nil
}

func loadScalars[T Scalar](ctx context.Context, c *codec, strs KeySpace[string], space KeySpace[T], prefix string, t PreferenceType, m map[string]T) error {
	index := indexKey(prefix, t)
	value, ok, err := strs.Get(ctx, index)
	if err != nil {
		return wrapStoreError("get", TypeString, index, err)
	}
	if !ok {
		return nil
	}
	c.keys++
	for _, key := range splitIndex(value) {
		member := memberKey(prefix, t, key)
		v, ok, err := space.Get(ctx, member)
		if err != nil {
			return wrapStoreError("get", t, member, err)
		}
		if !ok {
			c.cfg.logger.LogCodec(CodecLogEvent{
				Op:      OpMissingMember,
				RootKey: c.rootKey,
				Type:    t,
				Key:     member,
			})
			continue
		}
		m[key] = v
		c.keys++
	}
	return nil
}
