package vm

import (
	"sync"

	"github.com/gridcalc/gridcalc/pkg/compiler"
)

// Cache holds emitted programs keyed by IR fingerprint. It is safe for
// concurrent use; lookups only take the read lock.
type Cache struct {
	mu       sync.RWMutex
	programs map[string]*Program
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{programs: make(map[string]*Program)}
}

// Get returns the program for a fingerprint.
func (c *Cache) Get(key string) (*Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[key]
	return p, ok
}

// Load returns the cached program for expr, emitting it on a miss. The
// key is returned so callers can invalidate it later.
func (c *Cache) Load(expr compiler.Expr) (*Program, string, error) {
	key := compiler.Fingerprint(expr)
	if p, ok := c.Get(key); ok {
		return p, key, nil
	}
	p, err := Emit(expr)
	if err != nil {
		return nil, key, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.programs[key]; ok {
		return existing, key, nil
	}
	c.programs[key] = p
	return p, key, nil
}

// Invalidate drops one program.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.programs, key)
}

// Reset drops every program.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs = make(map[string]*Program)
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}
