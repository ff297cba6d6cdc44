package prefs

// DefaultMaxDepth bounds the nesting the codec follows before giving up.
const DefaultMaxDepth = 64

// StoreOption configures Store and From.
type StoreOption func(*codecConfig)

type codecConfig struct {
	logger   CodecLogger
	maxDepth int
}

func applyStoreOptions(opts []StoreOption) codecConfig {
	cfg := codecConfig{
		logger:   noopCodecLogger{},
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithCodecLogger attaches a logger to Store and From calls.
func WithCodecLogger(logger CodecLogger) StoreOption {
	return func(cfg *codecConfig) {
		if logger == nil {
			cfg.logger = noopCodecLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithMaxDepth overrides DefaultMaxDepth. Values below one are ignored.
func WithMaxDepth(depth int) StoreOption {
	return func(cfg *codecConfig) {
		if depth > 0 {
			cfg.maxDepth = depth
		}
	}
}
