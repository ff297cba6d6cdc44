package prefs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("prefs: reserved character")
	// ErrEmptyObject matches every *EmptyObjectError.
	ErrEmptyObject = errors.New("prefs: empty object")
	// ErrNilChild indicates SetChildObject received a nil node.
	ErrNilChild = errors.New("prefs: child must not be nil")
	// ErrCyclicChild indicates a node was attached to itself.
	ErrCyclicChild = errors.New("prefs: node cannot be its own child")
	// ErrMaxDepth indicates the encoder or decoder exceeded the configured
	// nesting limit.
	ErrMaxDepth = errors.New("prefs: maximum depth exceeded")
)

// ValidationError reports a key or string value containing a reserved
// character.
type ValidationError struct {
	Text     string
	Reserved string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("prefs: %q contains reserved character %q", e.Text, e.Reserved)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// EmptyObjectError reports a top-level Store call on a node without
// content.
type EmptyObjectError struct {
	RootKey string
}

func (e *EmptyObjectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("prefs: refusing to store empty object under %q", e.RootKey)
}

// Is lets errors.Is(err, ErrEmptyObject) match.
func (e *EmptyObjectError) Is(target error) bool {
	return target == ErrEmptyObject
}

// StoreError wraps a failure of the underlying TypedKeyValueStore with the
// operation and raw key involved.
type StoreError struct {
	Op   string
	Type PreferenceType
	Key  string
	Err  error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("prefs: %s %s %q: %v", e.Op, e.Type, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapStoreError(op string, t PreferenceType, key string, err error) error {
	if err == nil {
		return nil
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Type: t, Key: key, Err: err}
}
