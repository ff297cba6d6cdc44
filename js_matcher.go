//go:build js_eval

package prefs

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

const engineJS = "js"

type jsMatcher struct {
	cfg        matcherConfig
	expression string
	program    *goja.Program
}

// NewJSMatcher compiles a boolean JavaScript expression into a Matcher.
// Each Match runs on a fresh goja runtime.
func NewJSMatcher(expression string, opts ...MatcherOption) (Matcher, error) {
	if err := validateExpression(engineJS, expression); err != nil {
		return nil, err
	}
	m := &jsMatcher{cfg: applyMatcherOptions(opts), expression: expression}
	program, err := m.loadOrCompile()
	if err != nil {
		return nil, wrapMatcherError(engineJS, expression, err)
	}
	m.program = program
	return m, nil
}

func (m *jsMatcher) loadOrCompile() (*goja.Program, error) {
	key := cacheKey(engineJS, m.cfg.registry, m.expression)
	if m.cfg.cache != nil {
		if cached, ok := m.cfg.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapJSExpression(m.expression), false)
	if err != nil {
		return nil, err
	}
	if m.cfg.cache != nil {
		m.cfg.cache.Set(key, program)
	}
	return program, nil
}

// Match implements Matcher.
func (m *jsMatcher) Match(ctx context.Context, t PreferenceType, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	vm := goja.New()
	if err := m.inject(vm, t, key); err != nil {
		return false, wrapMatcherError(engineJS, m.expression, err)
	}
	value, err := vm.RunProgram(m.program)
	if err != nil {
		return false, wrapMatcherError(engineJS, m.expression, err)
	}
	return asMatch(engineJS, m.expression, value.Export())
}

func (m *jsMatcher) inject(vm *goja.Runtime, t PreferenceType, key string) error {
	for name, value := range m.cfg.bindings(t, key) {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	if m.cfg.registry == nil {
		return nil
	}
	registry := m.cfg.registry
	if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
		return registry.callFrom(engineJS, name, arguments...)
	}); err != nil {
		return err
	}
	for _, name := range registry.Names() {
		fn := name
		if err := vm.Set(fn, func(arguments ...any) (any, error) {
			return registry.callFrom(engineJS, fn, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}

func wrapJSExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}
