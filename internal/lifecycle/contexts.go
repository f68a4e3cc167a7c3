package lifecycle

import "sync"

// Contexts is an in-memory ContextRegistry.
type Contexts struct {
	mu    sync.RWMutex
	hosts map[string]any
}

var (
	_ ContextRegistry = (*Contexts)(nil)
	_ ContextRegistry = NopContexts{}
)

// NewContexts returns an empty registry.
func NewContexts() *Contexts {
	return &Contexts{hosts: make(map[string]any)}
}

// Register associates windowID with host.
func (c *Contexts) Register(windowID string, host any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hosts == nil {
		c.hosts = make(map[string]any)
	}
	c.hosts[windowID] = host
}

// Unregister drops the association for windowID.
func (c *Contexts) Unregister(windowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hosts, windowID)
}

// Lookup returns the host registered for windowID.
func (c *Contexts) Lookup(windowID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	host, ok := c.hosts[windowID]
	return host, ok
}

// Len returns the number of registered windows.
func (c *Contexts) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hosts)
}

// NopContexts is used on platforms without host contexts.
type NopContexts struct{}

func (NopContexts) Register(string, any) {}
func (NopContexts) Unregister(string)    {}
