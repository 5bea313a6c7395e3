// Package activesubs tracks subscription patterns across every Connection
// in the process, feeding the SUBSCRIPTION.n.SUBJECT-PATTERN tracking
// fields. This mirrors a supplemental behavior present in the original
// GMSEC implementation (a process-wide subscription registry consulted
// when stamping tracking fields) that the distilled spec does not name
// directly but that a complete tracking-field implementation requires.
package activesubs

import "sync"

var (
	mu    sync.RWMutex
	byConn = make(map[string]map[string]struct{})
)

// Register records that connID has subscribed to pattern.
func Register(connID, pattern string) {
	mu.Lock()
	defer mu.Unlock()
	set, ok := byConn[connID]
	if !ok {
		set = make(map[string]struct{})
		byConn[connID] = set
	}
	set[pattern] = struct{}{}
}

// Deregister records that connID is no longer subscribed to pattern.
func Deregister(connID, pattern string) {
	mu.Lock()
	defer mu.Unlock()
	if set, ok := byConn[connID]; ok {
		delete(set, pattern)
		if len(set) == 0 {
			delete(byConn, connID)
		}
	}
}

// DeregisterConnection removes every pattern tracked for connID, called on
// Connection.Disconnect.
func DeregisterConnection(connID string) {
	mu.Lock()
	defer mu.Unlock()
	delete(byConn, connID)
}

// Topics returns the subject patterns currently registered for connID, in
// no particular order.
func Topics(connID string) []string {
	mu.RLock()
	defer mu.RUnlock()
	set, ok := byConn[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
