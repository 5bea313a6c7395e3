package transport

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register binds a driver name (the value expected in the "mw-id" /
// "connectionType" configuration key) to a Factory. Adapter packages call
// this from an init() so that importing the adapter package for its side
// effect is enough to make it selectable — the same pattern the teacher's
// messaging.Config.Driver dispatch uses, generalized to a registry instead
// of a single switch statement so out-of-tree drivers can register too.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs a Driver for the named mw-id.
func New(name string, cfg map[string]string) (Driver, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: no driver registered for mw-id %q", name)
	}
	return factory(cfg)
}

// Registered reports whether a driver is registered under name.
func Registered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
