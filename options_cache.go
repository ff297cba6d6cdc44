package prefs

import "sync"

// ProgramCache stores compiled matcher programs keyed by engine, function
// registry and expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapProgramCache is a ProgramCache backed by a map. It is safe for
// concurrent use.
type MapProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

func NewMapProgramCache() *MapProgramCache {
	return &MapProgramCache{programs: map[string]any{}}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *MapProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// cacheKey is engine:expression without a registry and
// engine@fingerprint:expression with one.
func cacheKey(engine string, registry *FunctionRegistry, expression string) string {
	if registry == nil {
		return engine + ":" + expression
	}
	return engine + "@" + registry.fingerprint() + ":" + expression
}
