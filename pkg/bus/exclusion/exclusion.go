// Package exclusion implements subject-based receive suppression:
// Connection.ExcludeSubject / RemoveExcludedSubject, checked when a driver
// delivers an inbound message, before it is queued or dispatched to
// callbacks. Publish does not consult it.
package exclusion

import (
	"sync"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// Filter holds a set of excluded subject patterns.
type Filter struct {
	mu       sync.RWMutex
	patterns map[string]struct{}
}

func New() *Filter {
	return &Filter{patterns: make(map[string]struct{})}
}

// Exclude adds pattern to the excluded set.
func (f *Filter) Exclude(pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns[pattern] = struct{}{}
}

// RemoveExcluded removes pattern from the excluded set, reporting whether
// it had been present.
func (f *Filter) RemoveExcluded(pattern string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.patterns[pattern]; !ok {
		return false
	}
	delete(f.patterns, pattern)
	return true
}

// IsExcluded reports whether subject matches any excluded pattern.
func (f *Filter) IsExcluded(subject string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for p := range f.patterns {
		if message.MatchSubject(p, subject) {
			return true
		}
	}
	return false
}
