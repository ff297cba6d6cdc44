package prefs

import (
	"context"
	"log/slog"
	"time"
)

// CodecOp names the codec or pruner operation behind a log event.
type CodecOp string

const (
	OpStore         CodecOp = "store"
	OpLoad          CodecOp = "load"
	OpPrune         CodecOp = "prune"
	OpMissingMember CodecOp = "missing_member"
)

// CodecLogEvent describes one codec or pruner operation for logging.
type CodecLogEvent struct {
	Op       CodecOp
	RootKey  string
	Type     PreferenceType
	Key      string
	Keys     int
	Duration time.Duration
	Err      error
}

// CodecLogger records codec events.
type CodecLogger interface {
	LogCodec(CodecLogEvent)
}

// CodecLoggerFunc adapts a function to CodecLogger.
type CodecLoggerFunc func(CodecLogEvent)

// LogCodec implements CodecLogger.
func (f CodecLoggerFunc) LogCodec(event CodecLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopCodecLogger struct{}

func (noopCodecLogger) LogCodec(CodecLogEvent) {}

// SlogCodecLogger emits codec events to a slog.Logger. Failures log at
// error level, missing members at warn, everything else at debug.
type SlogCodecLogger struct {
	logger *slog.Logger
}

// NewSlogCodecLogger creates a CodecLogger backed by logger. A nil logger
// falls back to slog.Default().
func NewSlogCodecLogger(logger *slog.Logger) *SlogCodecLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogCodecLogger{logger: logger}
}

func (l *SlogCodecLogger) LogCodec(event CodecLogEvent) {
	level := slog.LevelDebug
	switch {
	case event.Err != nil:
		level = slog.LevelError
	case event.Op == OpMissingMember:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("root_key", event.RootKey),
		slog.Int("keys", event.Keys),
		slog.Duration("duration", event.Duration),
	}
	if event.Type != TypeUnknown {
		attrs = append(attrs, slog.String("type", event.Type.String()))
	}
	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), level, "prefs."+string(event.Op), attrs...)
}
