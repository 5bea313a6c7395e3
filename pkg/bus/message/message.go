// Package message implements the wire-agnostic data model shared by every
// transport driver: Message, Field, subject pattern matching, and the
// XML/JSON encodings used for wire compatibility and diagnostics.
package message

import (
	"sync"
)

// Kind distinguishes the three message roles the bus understands.
type Kind int

const (
	Publish Kind = iota
	Request
	Reply
)

func (k Kind) String() string {
	switch k {
	case Publish:
		return "PUBLISH"
	case Request:
		return "REQUEST"
	case Reply:
		return "REPLY"
	default:
		return "UNSET"
	}
}

// Config is the GMSEC runtime key/value object: transport hints attached to
// a Connection or a single Message (e.g. "mw-id", "gmsec-async-publish"). It is
// a distinct type from pkg/config's ambient env loader — this one is wire
// configuration, not process configuration.
type Config map[string]string

// Clone returns an independent copy of the Config.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// GetWithDefault returns the value for key, or def if absent.
func (c Config) GetWithDefault(key, def string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

// BoolValue parses the key as a boolean, returning def on error/absence.
func (c Config) BoolValue(key string, def bool) bool {
	v, ok := c[key]
	if !ok {
		return def
	}
	switch v {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// Message is the unit of data exchanged over the bus: an ordered set of
// named Fields under a subject, tagged with a Kind, plus a transport-hint
// Config and a meta-map of values that never travel on the wire (e.g. the
// correlation ID of a pending request).
type Message struct {
	mu sync.RWMutex

	subject string
	kind    Kind
	config  Config
	fields  map[string]*Field
	order   []string
	meta    map[string]interface{}
}

// New creates an empty Message for the given subject and kind.
func New(subject string, kind Kind) *Message {
	return &Message{
		subject: subject,
		kind:    kind,
		config:  Config{},
		fields:  make(map[string]*Field),
		meta:    make(map[string]interface{}),
	}
}

func (m *Message) Subject() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subject
}

func (m *Message) SetSubject(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subject = subject
}

func (m *Message) Kind() Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kind
}

func (m *Message) SetKind(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = kind
}

func (m *Message) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Clone()
}

func (m *Message) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg.Clone()
}

// AddField inserts or replaces a field, preserving first-insertion order.
// It reports whether the field replaced one already present under the same
// name, mirroring Message::addField's documented "replaced" return value.
func (m *Message) AddField(f *Field) (replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.fields[f.Name]
	if !exists {
		m.order = append(m.order, f.Name)
	}
	m.fields[f.Name] = f
	return exists
}

// AddFieldValue coerces value into a Field of the narrowest matching type
// and inserts it, mirroring Message::addField(name, value)'s overload set.
// It reports whether the field replaced one already present under the same
// name.
func (m *Message) AddFieldValue(name string, value interface{}) (replaced bool) {
	return m.AddField(AddFieldValue(name, value))
}

// GetField returns the named field, if present.
func (m *Message) GetField(name string) (*Field, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fields[name]
	return f, ok
}

// ClearField removes a single field, returning whether it existed.
func (m *Message) ClearField(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fields[name]; !ok {
		return false
	}
	delete(m.fields, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// ClearFields removes every field.
func (m *Message) ClearFields() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = make(map[string]*Field)
	m.order = nil
}

// FieldCount returns the number of fields currently set.
func (m *Message) FieldCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Fields returns the fields in insertion order.
func (m *Message) Fields() []*Field {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Field, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.fields[n])
	}
	return out
}

// Meta returns a value from the non-wire meta-map (e.g. correlation id,
// receive timestamp). Meta values never appear in ToXML/ToJSON output and
// never cross a transport driver boundary.
func (m *Message) Meta(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	return v, ok
}

func (m *Message) SetMeta(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
}

func (m *Message) ClearMeta(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meta, key)
}

// Clone returns a deep copy suitable for handing to a background thread
// (the correlator, the aggregator, a driver's async queue) without sharing
// the original's lock.
func (m *Message) Clone() *Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := New(m.subject, m.kind)
	out.config = m.config.Clone()
	for _, n := range m.order {
		f := *m.fields[n]
		out.AddField(&f)
	}
	for k, v := range m.meta {
		out.meta[k] = v
	}
	return out
}
