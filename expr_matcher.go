package prefs

import (
	"context"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

const engineExpr = "expr"

type exprMatcher struct {
	cfg        matcherConfig
	expression string
	program    *exprvm.Program
}

// NewExprMatcher compiles a boolean expr-lang expression into a Matcher.
// The expression sees kind, key, namespace and written, plus call(name,
// args...) and every registry function by name when a registry is set.
//
//	NewExprMatcher(`kind == "String" && key startsWith "IC#" && !(key in written)`,
//		MatcherWithWritten(written))
func NewExprMatcher(expression string, opts ...MatcherOption) (Matcher, error) {
	if err := validateExpression(engineExpr, expression); err != nil {
		return nil, err
	}
	m := &exprMatcher{cfg: applyMatcherOptions(opts), expression: expression}
	program, err := m.loadOrCompile()
	if err != nil {
		return nil, err
	}
	m.program = program
	return m, nil
}

func (m *exprMatcher) loadOrCompile() (*exprvm.Program, error) {
	key := cacheKey(engineExpr, m.cfg.registry, m.expression)
	if m.cfg.cache != nil {
		if cached, ok := m.cfg.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(m.environment(TypeUnknown, "")),
		exprlang.AsBool(),
	}
	if m.cfg.registry != nil {
		for _, name := range m.cfg.registry.Names() {
			options = append(options, exprlang.Function(name, m.registryFunction(name)))
		}
	}
	program, err := exprlang.Compile(m.expression, options...)
	if err != nil {
		return nil, wrapMatcherError(engineExpr, m.expression, err)
	}
	if m.cfg.cache != nil {
		m.cfg.cache.Set(key, program)
	}
	return program, nil
}

// Match implements Matcher.
func (m *exprMatcher) Match(ctx context.Context, t PreferenceType, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	result, err := exprlang.Run(m.program, m.environment(t, key))
	if err != nil {
		return false, wrapMatcherError(engineExpr, m.expression, err)
	}
	return asMatch(engineExpr, m.expression, result)
}

func (m *exprMatcher) environment(t PreferenceType, key string) map[string]any {
	env := m.cfg.bindings(t, key)
	if m.cfg.registry != nil {
		registry := m.cfg.registry
		env["call"] = func(name string, arguments ...any) (any, error) {
			return registry.callFrom(engineExpr, name, arguments...)
		}
	}
	return env
}

func (m *exprMatcher) registryFunction(name string) func(...any) (any, error) {
	registry := m.cfg.registry
	return func(arguments ...any) (any, error) {
		return registry.callFrom(engineExpr, name, arguments...)
	}
}
