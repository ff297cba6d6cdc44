package prefs

import (
	"context"
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

const engineCEL = "cel"

type celMatcher struct {
	cfg        matcherConfig
	expression string
	program    celgo.Program
}

// NewCELMatcher compiles a boolean CEL expression into a Matcher. The
// expression sees kind, key and namespace as strings and written as a
// list of strings. With a registry set, call(name, [args]) reaches the
// registered functions.
func NewCELMatcher(expression string, opts ...MatcherOption) (Matcher, error) {
	if err := validateExpression(engineCEL, expression); err != nil {
		return nil, err
	}
	m := &celMatcher{cfg: applyMatcherOptions(opts), expression: expression}
	program, err := m.loadOrCompile()
	if err != nil {
		return nil, wrapMatcherError(engineCEL, expression, err)
	}
	m.program = program
	return m, nil
}

func (m *celMatcher) loadOrCompile() (celgo.Program, error) {
	key := cacheKey(engineCEL, m.cfg.registry, m.expression)
	if m.cfg.cache != nil {
		if cached, ok := m.cfg.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := m.buildEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(m.expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(celgo.BoolType) {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if m.cfg.cache != nil {
		m.cfg.cache.Set(key, program)
	}
	return program, nil
}

func (m *celMatcher) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("kind", celgo.StringType),
		celgo.Variable("key", celgo.StringType),
		celgo.Variable("namespace", celgo.StringType),
		celgo.Variable("written", celgo.ListType(celgo.StringType)),
	}
	if m.cfg.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(m.callBinding),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

// Match implements Matcher.
func (m *celMatcher) Match(ctx context.Context, t PreferenceType, key string) (bool, error) {
	out, _, err := m.program.ContextEval(ctx, m.cfg.bindings(t, key))
	if err != nil {
		return false, wrapMatcherError(engineCEL, m.expression, err)
	}
	return asMatch(engineCEL, m.expression, out.Value())
}

func (m *celMatcher) callBinding(name, args ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("prefs: call name must be string")
	}
	native, err := args.ConvertToNative(reflect.TypeOf([]any{}))
	if err != nil {
		return types.NewErr("prefs: call arguments: %v", err)
	}
	arguments, _ := native.([]any)
	result, err := m.cfg.registry.callFrom(engineCEL, fn, arguments...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
