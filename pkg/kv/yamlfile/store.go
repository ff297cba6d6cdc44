// Package yamlfile persists a TypedKeyValueStore as a single YAML document,
// one mapping per key space.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/kv"
)

// Document is the on-disk layout. Each field maps raw store keys to values.
type Document struct {
	Boolean map[string]bool   `yaml:"Boolean,omitempty"`
	Byte    map[string]uint8  `yaml:"Byte,omitempty"`
	Short   map[string]int16  `yaml:"Short,omitempty"`
	Integer map[string]int32  `yaml:"Integer,omitempty"`
	Long    map[string]int64  `yaml:"Long,omitempty"`
	String  map[string]string `yaml:"String,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithAutoFlush controls whether every Set and Delete rewrites the file.
// It defaults to true; with false the caller calls Flush.
func WithAutoFlush(enabled bool) Option {
	return func(s *Store) {
		s.autoFlush = enabled
	}
}

// WithFileMode sets the permissions used when the file is created.
func WithFileMode(mode fs.FileMode) Option {
	return func(s *Store) {
		s.mode = mode
	}
}

// Store is a TypedKeyValueStore backed by a YAML file. Values live in
// memory; the file is rewritten atomically on flush.
type Store struct {
	path      string
	mode      fs.FileMode
	autoFlush bool

	flushMu  sync.Mutex
	booleans *kv.Space[bool]
	bytes    *kv.Space[byte]
	shorts   *kv.Space[int16]
	integers *kv.Space[int32]
	longs    *kv.Space[int64]
	strings  *kv.Space[string]
}

var _ prefs.TypedKeyValueStore = (*Store)(nil)

// Open loads path when it exists and returns an empty store otherwise.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("yamlfile: path is required")
	}
	s := &Store{
		path:      path,
		mode:      0o600,
		autoFlush: true,
		booleans:  kv.NewSpace[bool](),
		bytes:     kv.NewSpace[byte](),
		shorts:    kv.NewSpace[int16](),
		integers:  kv.NewSpace[int32](),
		longs:     kv.NewSpace[int64](),
		strings:   kv.NewSpace[string](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("yamlfile: read %q: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("yamlfile: decode %q: %w", path, err)
	}
	s.booleans.Replace(doc.Boolean)
	s.bytes.Replace(doc.Byte)
	s.shorts.Replace(doc.Short)
	s.integers.Replace(doc.Integer)
	s.longs.Replace(doc.Long)
	s.strings.Replace(doc.String)
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Document returns a copy of the current contents.
func (s *Store) Document() Document {
	return Document{
		Boolean: s.booleans.Snapshot(),
		Byte:    s.bytes.Snapshot(),
		Short:   s.shorts.Snapshot(),
		Integer: s.integers.Snapshot(),
		Long:    s.longs.Snapshot(),
		String:  s.strings.Snapshot(),
	}
}

// Flush writes the current contents to a temporary file next to the
// target and renames it into place.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	raw, err := yaml.Marshal(s.Document())
	if err != nil {
		return fmt.Errorf("yamlfile: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("yamlfile: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("yamlfile: write %q: %w", tmpName, err)
	}
	if err := tmp.Chmod(s.mode); err != nil {
		tmp.Close()
		return fmt.Errorf("yamlfile: chmod %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("yamlfile: close %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("yamlfile: rename to %q: %w", s.path, err)
	}
	return nil
}

func (s *Store) Booleans() prefs.KeySpace[bool] {
	return persistentSpace[bool]{inner: s.booleans, store: s}
}

func (s *Store) Bytes() prefs.KeySpace[byte] {
	return persistentSpace[byte]{inner: s.bytes, store: s}
}

func (s *Store) Shorts() prefs.KeySpace[int16] {
	return persistentSpace[int16]{inner: s.shorts, store: s}
}

func (s *Store) Integers() prefs.KeySpace[int32] {
	return persistentSpace[int32]{inner: s.integers, store: s}
}

func (s *Store) Longs() prefs.KeySpace[int64] {
	return persistentSpace[int64]{inner: s.longs, store: s}
}

func (s *Store) Strings() prefs.KeySpace[string] {
	return persistentSpace[string]{inner: s.strings, store: s}
}

type persistentSpace[T prefs.Scalar] struct {
	inner *kv.Space[T]
	store *Store
}

func (p persistentSpace[T]) Get(ctx context.Context, key string) (T, bool, error) {
	return p.inner.Get(ctx, key)
}

func (p persistentSpace[T]) Set(ctx context.Context, key string, value T) error {
	if err := p.inner.Set(ctx, key, value); err != nil {
		return err
	}
	return p.flush(ctx)
}

func (p persistentSpace[T]) Delete(ctx context.Context, key string) error {
	if err := p.inner.Delete(ctx, key); err != nil {
		return err
	}
	return p.flush(ctx)
}

func (p persistentSpace[T]) Keys(ctx context.Context) ([]string, error) {
	return p.inner.Keys(ctx)
}

func (p persistentSpace[T]) flush(ctx context.Context) error {
	if !p.store.autoFlush {
		return nil
	}
	return p.store.Flush(ctx)
}
