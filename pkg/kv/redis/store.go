// Package redis stores a TypedKeyValueStore in Redis, one hash per key
// space.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	log "log/slog"

	"github.com/redis/go-redis/v9"
	retry "github.com/sethvargo/go-retry"

	prefs "github.com/goliatone/go-prefs"
)

// DefaultPrefix namespaces the hashes created by a Store.
const DefaultPrefix = "prefs"

// Options holds configuration for connecting to a Redis server.
type Options struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password is the password used to authenticate.
	Password string
	// DB is the database index to select.
	DB int
	// TLSConfig contains TLS configuration for secure connections.
	TLSConfig *tls.Config
	// Prefix is prepended to every hash name. Empty means DefaultPrefix.
	Prefix string
	// ConnectRetries is how many times Open retries a failed PING.
	ConnectRetries uint64
	// ConnectBackoff is the first delay of the Fibonacci backoff between
	// PING attempts.
	ConnectBackoff time.Duration
}

// DefaultOptions returns Options with localhost defaults (no password, DB 0).
func DefaultOptions() Options {
	return Options{
		Address:        "localhost:6379",
		DB:             0,
		Prefix:         DefaultPrefix,
		ConnectRetries: 3,
		ConnectBackoff: 100 * time.Millisecond,
	}
}

// Store is a TypedKeyValueStore whose key spaces are Redis hashes named
// "<prefix>:<Type>". Values are stored in their decimal or literal string
// form.
type Store struct {
	client  redis.Cmdable
	prefix  string
	closer  func() error
	isOwner bool
}

var _ prefs.TypedKeyValueStore = (*Store)(nil)

// Open connects to Redis with options and verifies the connection with a
// PING, retried with Fibonacci backoff. Close releases the connection.
func Open(ctx context.Context, options Options) (*Store, error) {
	log.Info("Opening Redis preference store", "address", options.Address, "db", options.DB)
	client := redis.NewClient(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
	})
	if err := ping(ctx, client, options); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", options.Address, err)
	}
	s := New(client, options.Prefix)
	s.closer = client.Close
	s.isOwner = true
	return s, nil
}

func ping(ctx context.Context, client redis.Cmdable, options Options) error {
	backoff := options.ConnectBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	b := retry.WithMaxRetries(options.ConnectRetries, retry.NewFibonacci(backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Warn("Redis ping failed", "address", options.Address, "error", err)
		return retry.RetryableError(err)
	})
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the connection when the store opened it.
func (s *Store) Close() error {
	if !s.isOwner || s.closer == nil {
		return nil
	}
	log.Info("Closing Redis preference store")
	err := s.closer()
	s.closer = nil
	return err
}

// Clear removes every hash owned by the store.
func (s *Store) Clear(ctx context.Context) error {
	names := make([]string, 0, len(prefs.PrimitiveTypes()))
	for _, t := range prefs.PrimitiveTypes() {
		names = append(names, s.hashName(t))
	}
	if err := s.client.Del(ctx, names...).Err(); err != nil {
		return fmt.Errorf("redis: clear: %w", err)
	}
	return nil
}

func (s *Store) hashName(t prefs.PreferenceType) string {
	return s.prefix + ":" + t.String()
}

func (s *Store) Booleans() prefs.KeySpace[bool] {
	return hashSpace[bool]{store: s, hash: s.hashName(prefs.TypeBoolean), decode: decodeBool}
}

func (s *Store) Bytes() prefs.KeySpace[byte] {
	return hashSpace[byte]{store: s, hash: s.hashName(prefs.TypeByte), decode: decodeUint[byte](8)}
}

func (s *Store) Shorts() prefs.KeySpace[int16] {
	return hashSpace[int16]{store: s, hash: s.hashName(prefs.TypeShort), decode: decodeInt[int16](16)}
}

func (s *Store) Integers() prefs.KeySpace[int32] {
	return hashSpace[int32]{store: s, hash: s.hashName(prefs.TypeInteger), decode: decodeInt[int32](32)}
}

func (s *Store) Longs() prefs.KeySpace[int64] {
	return hashSpace[int64]{store: s, hash: s.hashName(prefs.TypeLong), decode: decodeInt[int64](64)}
}

func (s *Store) Strings() prefs.KeySpace[string] {
	return hashSpace[string]{store: s, hash: s.hashName(prefs.TypeString), decode: decodeString}
}

type hashSpace[T prefs.Scalar] struct {
	store  *Store
	hash   string
	decode func(string) (T, error)
}

func (h hashSpace[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := h.store.client.HGet(ctx, h.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis: hget %s %q: %w", h.hash, key, err)
	}
	value, err := h.decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("redis: decode %s %q: %w", h.hash, key, err)
	}
	return value, true, nil
}

func (h hashSpace[T]) Set(ctx context.Context, key string, value T) error {
	if err := h.store.client.HSet(ctx, h.hash, key, encode(value)).Err(); err != nil {
		return fmt.Errorf("redis: hset %s %q: %w", h.hash, key, err)
	}
	return nil
}

func (h hashSpace[T]) Delete(ctx context.Context, key string) error {
	if err := h.store.client.HDel(ctx, h.hash, key).Err(); err != nil {
		return fmt.Errorf("redis: hdel %s %q: %w", h.hash, key, err)
	}
	return nil
}

func (h hashSpace[T]) Keys(ctx context.Context) ([]string, error) {
	keys, err := h.store.client.HKeys(ctx, h.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hkeys %s: %w", h.hash, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func encode[T prefs.Scalar](value T) string {
	switch v := any(value).(type) {
	case bool:
		return strconv.FormatBool(v)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(value)
	}
}

func decodeBool(raw string) (bool, error) {
	return strconv.ParseBool(raw)
}

func decodeString(raw string) (string, error) {
	return raw, nil
}

func decodeInt[T int16 | int32 | int64](bits int) func(string) (T, error) {
	return func(raw string) (T, error) {
		v, err := strconv.ParseInt(raw, 10, bits)
		return T(v), err
	}
}

func decodeUint[T uint8](bits int) func(string) (T, error) {
	return func(raw string) (T, error) {
		v, err := strconv.ParseUint(raw, 10, bits)
		return T(v), err
	}
}
