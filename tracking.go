package prefs

import "context"

// TrackingStore decorates a TypedKeyValueStore and records every key
// written through it, grouped by type. Reads and enumeration pass through
// untouched. It adds no locking of its own.
type TrackingStore struct {
	inner   TypedKeyValueStore
	written WrittenKeys
}

// NewTrackingStore wraps inner. The accumulated key set starts empty even
// when inner already holds data.
func NewTrackingStore(inner TypedKeyValueStore) *TrackingStore {
	return &TrackingStore{
		inner:   inner,
		written: newWrittenKeys(),
	}
}

// Written returns a copy of every key set through this instance since its
// construction, minus keys deleted through it.
func (s *TrackingStore) Written() WrittenKeys {
	return s.written.clone()
}

// Note records key under t without touching the wrapped store. The codec
// uses it to expose child index keys under TypeChild.
func (s *TrackingStore) Note(t PreferenceType, key string) {
	s.written.add(t, key)
}

// Unwrap returns the decorated store.
func (s *TrackingStore) Unwrap() TypedKeyValueStore {
	return s.inner
}

func (s *TrackingStore) Booleans() KeySpace[bool] {
	return trackingSpace[bool]{inner: s.inner.Booleans(), typ: TypeBoolean, written: s.written}
}

func (s *TrackingStore) Bytes() KeySpace[byte] {
	return trackingSpace[byte]{inner: s.inner.Bytes(), typ: TypeByte, written: s.written}
}

func (s *TrackingStore) Shorts() KeySpace[int16] {
	return trackingSpace[int16]{inner: s.inner.Shorts(), typ: TypeShort, written: s.written}
}

func (s *TrackingStore) Integers() KeySpace[int32] {
	return trackingSpace[int32]{inner: s.inner.Integers(), typ: TypeInteger, written: s.written}
}

func (s *TrackingStore) Longs() KeySpace[int64] {
	return trackingSpace[int64]{inner: s.inner.Longs(), typ: TypeLong, written: s.written}
}

func (s *TrackingStore) Strings() KeySpace[string] {
	return trackingSpace[string]{inner: s.inner.Strings(), typ: TypeString, written: s.written}
}

type trackingSpace[T Scalar] struct {
	inner   KeySpace[T]
	typ     PreferenceType
	written WrittenKeys
}

func (s trackingSpace[T]) Get(ctx context.Context, key string) (T, bool, error) {
	return s.inner.Get(ctx, key)
}

func (s trackingSpace[T]) Set(ctx context.Context, key string, value T) error {
	s.written.add(s.typ, key)
	return s.inner.Set(ctx, key, value)
}

func (s trackingSpace[T]) Delete(ctx context.Context, key string) error {
	delete(s.written[s.typ], key)
	// Child index keys live in the String space and are also noted under Child.
	if s.typ == TypeString {
		delete(s.written[TypeChild], key)
	}
	return s.inner.Delete(ctx, key)
}

func (s trackingSpace[T]) Keys(ctx context.Context) ([]string, error) {
	return s.inner.Keys(ctx)
}
