// Package prefs persists hierarchical preference objects into flat,
// per-type key/value stores.
//
// A Node holds six typed scalar maps plus named child nodes. Store encodes
// a Node under a caller-chosen root key using a small key grammar:
//
//	<prefix>#<Type>          index: "$"-joined member keys
//	<prefix>#<Type>$<key>    member: the scalar value
//	<prefix>#Child$<key>     prefix of a nested node
//
// Keys and string values may not contain "#" or "$", so encoded keys never
// collide. Store reports every key it wrote; feed that set to a Pruner to
// remove entries left behind by earlier generations.
package prefs

import (
	"maps"
	"sort"
)

// Node is an in-memory hierarchical preference object. The zero value is
// not usable; construct nodes with NewNode.
type Node struct {
	booleans map[string]bool
	bytes    map[string]byte
	shorts   map[string]int16
	integers map[string]int32
	longs    map[string]int64
	strings  map[string]string
	children map[string]*Node
}

// NewNode returns an empty node.
func NewNode() *Node {
	return &Node{
		booleans: map[string]bool{},
		bytes:    map[string]byte{},
		shorts:   map[string]int16{},
		integers: map[string]int32{},
		longs:    map[string]int64{},
		strings:  map[string]string{},
		children: map[string]*Node{},
	}
}

func setScalar[T Scalar](m map[string]T, key string, value T) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s, ok := any(value).(string); ok {
		if err := ValidateKey(s); err != nil {
			return err
		}
	}
	m[key] = value
	return nil
}

func getScalar[T any](m map[string]T, key string) (T, bool) {
	value, ok := m[key]
	return value, ok
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SetBoolean stores value under key after validating key. The other typed
// setters behave the same way.
func (n *Node) SetBoolean(key string, value bool) error {
	return setScalar(n.booleans, key, value)
}

// GetBoolean returns the value stored under key and whether it exists.
func (n *Node) GetBoolean(key string) (bool, bool) {
	return getScalar(n.booleans, key)
}

func (n *Node) DeleteBoolean(key string) {
	delete(n.booleans, key)
}

func (n *Node) BooleanKeys() []string {
	return sortedKeys(n.booleans)
}

func (n *Node) SetByte(key string, value byte) error {
	return setScalar(n.bytes, key, value)
}

func (n *Node) GetByte(key string) (byte, bool) {
	return getScalar(n.bytes, key)
}

func (n *Node) DeleteByte(key string) {
	delete(n.bytes, key)
}

func (n *Node) ByteKeys() []string {
	return sortedKeys(n.bytes)
}

func (n *Node) SetShort(key string, value int16) error {
	return setScalar(n.shorts, key, value)
}

func (n *Node) GetShort(key string) (int16, bool) {
	return getScalar(n.shorts, key)
}

func (n *Node) DeleteShort(key string) {
	delete(n.shorts, key)
}

func (n *Node) ShortKeys() []string {
	return sortedKeys(n.shorts)
}

func (n *Node) SetInteger(key string, value int32) error {
	return setScalar(n.integers, key, value)
}

func (n *Node) GetInteger(key string) (int32, bool) {
	return getScalar(n.integers, key)
}

func (n *Node) DeleteInteger(key string) {
	delete(n.integers, key)
}

func (n *Node) IntegerKeys() []string {
	return sortedKeys(n.integers)
}

func (n *Node) SetLong(key string, value int64) error {
	return setScalar(n.longs, key, value)
}

func (n *Node) GetLong(key string) (int64, bool) {
	return getScalar(n.longs, key)
}

func (n *Node) DeleteLong(key string) {
	delete(n.longs, key)
}

func (n *Node) LongKeys() []string {
	return sortedKeys(n.longs)
}

// SetString validates both key and value against the key grammar.
func (n *Node) SetString(key string, value string) error {
	return setScalar(n.strings, key, value)
}

func (n *Node) GetString(key string) (string, bool) {
	return getScalar(n.strings, key)
}

func (n *Node) DeleteString(key string) {
	delete(n.strings, key)
}

func (n *Node) StringKeys() []string {
	return sortedKeys(n.strings)
}

// SetChildObject attaches child under key, replacing any previous child.
// The node keeps a reference: later mutations of child are visible through
// the parent. The child's own content is assumed valid already.
func (n *Node) SetChildObject(key string, child *Node) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if child == nil {
		return ErrNilChild
	}
	if child == n {
		return ErrCyclicChild
	}
	n.children[key] = child
	return nil
}

// GetChildObject returns the child stored under key.
func (n *Node) GetChildObject(key string) (*Node, bool) {
	child, ok := n.children[key]
	return child, ok
}

func (n *Node) DeleteChildObject(key string) {
	delete(n.children, key)
}

// ChildObjectKeys returns the child keys in ascending order.
func (n *Node) ChildObjectKeys() []string {
	return sortedKeys(n.children)
}

// IsEmpty reports whether the node holds neither scalars nor children.
func (n *Node) IsEmpty() bool {
	return len(n.booleans) == 0 &&
		len(n.bytes) == 0 &&
		len(n.shorts) == 0 &&
		len(n.integers) == 0 &&
		len(n.longs) == 0 &&
		len(n.strings) == 0 &&
		len(n.children) == 0
}

// Equal reports structural equality: identical scalar maps and recursively
// equal children under identical keys. Entry order is irrelevant.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if !maps.Equal(n.booleans, other.booleans) ||
		!maps.Equal(n.bytes, other.bytes) ||
		!maps.Equal(n.shorts, other.shorts) ||
		!maps.Equal(n.integers, other.integers) ||
		!maps.Equal(n.longs, other.longs) ||
		!maps.Equal(n.strings, other.strings) {
		return false
	}
	return maps.EqualFunc(n.children, other.children, func(a, b *Node) bool {
		return a.Equal(b)
	})
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		booleans: maps.Clone(n.booleans),
		bytes:    maps.Clone(n.bytes),
		shorts:   maps.Clone(n.shorts),
		integers: maps.Clone(n.integers),
		longs:    maps.Clone(n.longs),
		strings:  maps.Clone(n.strings),
		children: make(map[string]*Node, len(n.children)),
	}
	for key, child := range n.children {
		out.children[key] = child.Clone()
	}
	return out
}

// ToMap renders the node as nested maps for display and export. Scalars
// are grouped by type name; children appear under "Child".
func (n *Node) ToMap() map[string]any {
	out := map[string]any{}
	addTyped(out, TypeBoolean, n.booleans)
	addTyped(out, TypeByte, n.bytes)
	addTyped(out, TypeShort, n.shorts)
	addTyped(out, TypeInteger, n.integers)
	addTyped(out, TypeLong, n.longs)
	addTyped(out, TypeString, n.strings)
	if len(n.children) > 0 {
		children := make(map[string]any, len(n.children))
		for key, child := range n.children {
			children[key] = child.ToMap()
		}
		out[TypeChild.String()] = children
	}
	return out
}

func addTyped[T any](out map[string]any, t PreferenceType, m map[string]T) {
	if len(m) == 0 {
		return
	}
	values := make(map[string]any, len(m))
	for key, value := range m {
		values[key] = value
	}
	out[t.String()] = values
}
