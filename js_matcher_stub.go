//go:build !js_eval

package prefs

// NewJSMatcher is unavailable without the js_eval build tag.
func NewJSMatcher(expression string, opts ...MatcherOption) (Matcher, error) {
	_ = applyMatcherOptions(opts)
	return nil, wrapMatcherError("js", expression, ErrMatcherUnavailable)
}
