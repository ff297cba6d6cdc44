package prefs

import (
	"context"
	"sort"
)

// PreferenceType identifies one of the primitive key spaces of a
// TypedKeyValueStore, or the Child pseudo tag used for nested nodes.
type PreferenceType int

const (
	// TypeUnknown is the zero value and never names a key space.
	TypeUnknown PreferenceType = iota
	TypeBoolean
	TypeByte
	TypeShort
	TypeInteger
	TypeLong
	TypeString
	// TypeChild tags child indexes. It has no key space of its own; child
	// index entries are persisted in the String space.
	TypeChild
)

// String returns the tag used inside encoded keys.
func (t PreferenceType) String() string {
	switch t {
	case TypeBoolean:
		return "Boolean"
	case TypeByte:
		return "Byte"
	case TypeShort:
		return "Short"
	case TypeInteger:
		return "Integer"
	case TypeLong:
		return "Long"
	case TypeString:
		return "String"
	case TypeChild:
		return "Child"
	default:
		return "Unknown"
	}
}

// IsPrimitive reports whether t names one of the six scalar key spaces.
func (t PreferenceType) IsPrimitive() bool {
	return t >= TypeBoolean && t <= TypeString
}

// ParsePreferenceType converts an encoded tag back into a PreferenceType.
// Unknown tags return TypeUnknown and false.
func ParsePreferenceType(value string) (PreferenceType, bool) {
	switch value {
	case "Boolean":
		return TypeBoolean, true
	case "Byte":
		return TypeByte, true
	case "Short":
		return TypeShort, true
	case "Integer":
		return TypeInteger, true
	case "Long":
		return TypeLong, true
	case "String":
		return TypeString, true
	case "Child":
		return TypeChild, true
	default:
		return TypeUnknown, false
	}
}

// PrimitiveTypes returns the six scalar types in the order the codec writes
// them.
func PrimitiveTypes() []PreferenceType {
	return []PreferenceType{TypeBoolean, TypeByte, TypeInteger, TypeLong, TypeShort, TypeString}
}

// Scalar lists the Go types backing the primitive key spaces.
type Scalar interface {
	~bool | ~uint8 | ~int16 | ~int32 | ~int64 | ~string
}

// KeySpace is one flat, typed namespace of a host store.
type KeySpace[T Scalar] interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (T, bool, error)
	// Set creates or overwrites key.
	Set(ctx context.Context, key string, value T) error
	// Delete removes key. Missing keys are ignored.
	Delete(ctx context.Context, key string) error
	// Keys enumerates every key currently present in the space.
	Keys(ctx context.Context) ([]string, error)
}

// TypedKeyValueStore is the host-provided flat persistence API. It offers
// six independent key spaces and nothing else: no nesting, no prefix
// queries, no transactions.
type TypedKeyValueStore interface {
	Booleans() KeySpace[bool]
	Bytes() KeySpace[byte]
	Shorts() KeySpace[int16]
	Integers() KeySpace[int32]
	Longs() KeySpace[int64]
	Strings() KeySpace[string]
}

// KeySet is a set of raw store keys.
type KeySet map[string]struct{}

// Contains reports whether key is a member of s.
func (s KeySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the members of s in ascending order.
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for key := range s {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (s KeySet) clone() KeySet {
	out := make(KeySet, len(s))
	for key := range s {
		out[key] = struct{}{}
	}
	return out
}

// WrittenKeys groups raw store keys by the type that holds them.
type WrittenKeys map[PreferenceType]KeySet

// Contains reports whether key was recorded under t.
func (w WrittenKeys) Contains(t PreferenceType, key string) bool {
	return w[t].Contains(key)
}

// Len returns the number of keys recorded across the primitive types. Child
// entries are a view over String keys and are not counted twice.
func (w WrittenKeys) Len() int {
	total := 0
	for t, set := range w {
		if !t.IsPrimitive() {
			continue
		}
		total += len(set)
	}
	return total
}

func (w WrittenKeys) add(t PreferenceType, key string) {
	set, ok := w[t]
	if !ok {
		set = KeySet{}
		w[t] = set
	}
	set[key] = struct{}{}
}

func (w WrittenKeys) clone() WrittenKeys {
	out := make(WrittenKeys, len(w))
	for t, set := range w {
		out[t] = set.clone()
	}
	return out
}

func newWrittenKeys() WrittenKeys {
	w := WrittenKeys{}
	for _, t := range PrimitiveTypes() {
		w[t] = KeySet{}
	}
	w[TypeChild] = KeySet{}
	return w
}
