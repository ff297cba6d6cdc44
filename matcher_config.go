package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMatcherUnavailable is returned by constructors for engines that were
// compiled out of the binary.
var ErrMatcherUnavailable = errors.New("prefs: matcher engine not available")

// MatcherError captures the engine and expression behind a failed
// compilation or evaluation.
type MatcherError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *MatcherError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("prefs: %s matcher %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *MatcherError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapMatcherError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var matchErr *MatcherError
	if errors.As(err, &matchErr) {
		if matchErr.Engine == "" {
			matchErr.Engine = engine
		}
		if matchErr.Expr == "" {
			matchErr.Expr = expr
		}
		return matchErr
	}
	return &MatcherError{Engine: engine, Expr: expr, Err: err}
}

// MatcherOption configures the expression-backed matchers.
type MatcherOption func(*matcherConfig)

type matcherConfig struct {
	cache     ProgramCache
	registry  *FunctionRegistry
	namespace string
	written   map[PreferenceType][]string
}

func applyMatcherOptions(opts []MatcherOption) matcherConfig {
	cfg := matcherConfig{written: map[PreferenceType][]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// MatcherWithProgramCache reuses compiled programs across matchers.
func MatcherWithProgramCache(cache ProgramCache) MatcherOption {
	return func(cfg *matcherConfig) {
		cfg.cache = cache
	}
}

// MatcherWithFunctionRegistry exposes registry functions to expressions.
func MatcherWithFunctionRegistry(registry *FunctionRegistry) MatcherOption {
	return func(cfg *matcherConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.snapshot()
	}
}

// MatcherWithNamespace binds the namespace variable.
func MatcherWithNamespace(namespace string) MatcherOption {
	return func(cfg *matcherConfig) {
		cfg.namespace = namespace
	}
}

// MatcherWithWritten binds the written variable: for each key examined it
// holds the keys written under the same type.
func MatcherWithWritten(written WrittenKeys) MatcherOption {
	return func(cfg *matcherConfig) {
		for t, set := range written {
			cfg.written[t] = set.Sorted()
		}
	}
}

// bindings returns the variables every engine exposes: kind, key,
// namespace and written.
func (cfg matcherConfig) bindings(t PreferenceType, key string) map[string]any {
	written := cfg.written[t]
	if written == nil {
		written = []string{}
	}
	return map[string]any{
		"kind":      t.String(),
		"key":       key,
		"namespace": cfg.namespace,
		"written":   written,
	}
}

func validateExpression(engine, expression string) error {
	if strings.TrimSpace(expression) == "" {
		return wrapMatcherError(engine, expression, fmt.Errorf("expression must not be empty"))
	}
	return nil
}

func asMatch(engine, expression string, value any) (bool, error) {
	matched, ok := value.(bool)
	if !ok {
		return false, wrapMatcherError(engine, expression, fmt.Errorf("expression must return bool, got %T", value))
	}
	return matched, nil
}
