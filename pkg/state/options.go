package state

import (
	"time"

	"github.com/google/uuid"

	prefs "github.com/goliatone/go-prefs"
	"github.com/goliatone/go-prefs/pkg/activity"
)

// Option configures a Repository.
type Option func(*Repository)

// WithActivityHooks emits preference events to hooks on the given channel.
// Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks, channel string) Option {
	return func(r *Repository) {
		r.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true, Channel: channel})
	}
}

// WithEmitter uses a preconfigured emitter.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(r *Repository) {
		r.emitter = emitter
	}
}

// WithCodecLogger forwards codec and pruner events to logger.
func WithCodecLogger(logger prefs.CodecLogger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxDepth bounds the nesting followed when storing and loading.
func WithMaxDepth(depth int) Option {
	return func(r *Repository) {
		r.maxDepth = depth
	}
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSnapshotIDs overrides the snapshot id generator. The default is a
// random UUID.
func WithSnapshotIDs(next func() string) Option {
	return func(r *Repository) {
		if next != nil {
			r.nextID = next
		}
	}
}

func defaultSnapshotID() string {
	return uuid.NewString()
}
