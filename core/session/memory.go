package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*BookingContext
	options  map[string][]CommandOption
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory Store and OptionRegistry.
// Suitable for single-process deployments, tests, and development.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{memoryStore{
		sessions: make(map[string]*BookingContext),
		options:  make(map[string][]CommandOption),
		ttl:      ttl,
		now:      time.Now,
	}}
}

// MemoryStore is the exported in-memory implementation.
type MemoryStore struct {
	memoryStore
}

// SetClock overrides the time source, used by tests to force staleness.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns the context and whether its flow state is live. Staleness is
// evaluated lazily: an expired context has its volatile fields reset here.
func (m *MemoryStore) Get(_ context.Context, identity string) (*BookingContext, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[identity]
	if !ok {
		fresh := &BookingContext{UpdatedAt: m.now()}
		return fresh, false, nil
	}
	if m.stale(sess) {
		sess.Reset(FieldMessageID)
		return sess.Clone(), false, nil
	}
	return sess.Clone(), true, nil
}

// Merge applies a partial update, creating the record if needed.
func (m *MemoryStore) Merge(_ context.Context, identity string, p Partial) (*BookingContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[identity]
	if !ok {
		sess = &BookingContext{}
		m.sessions[identity] = sess
	} else if m.stale(sess) {
		sess.Reset(FieldMessageID)
	}
	sess.Apply(p)
	sess.UpdatedAt = m.now()
	return sess.Clone(), nil
}

// Clear resets volatile fields in place; the record is retained so durable
// fields keep powering quick rebooking.
func (m *MemoryStore) Clear(_ context.Context, identity string, keep ...Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[identity]
	if !ok {
		return nil
	}
	sess.Reset(keep...)
	sess.UpdatedAt = m.now()
	return nil
}

// ReplaceOptions swaps the identity's numbered-menu options.
func (m *MemoryStore) ReplaceOptions(_ context.Context, identity string, opts []CommandOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(opts) == 0 {
		delete(m.options, identity)
		return nil
	}
	m.options[identity] = append([]CommandOption(nil), opts...)
	return nil
}

// Resolve maps a plain numeric reply to the matching option.
func (m *MemoryStore) Resolve(_ context.Context, identity string, reply string) (CommandOption, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reply = strings.TrimSpace(reply)
	for _, opt := range m.options[identity] {
		if opt.ID == reply {
			return opt, true, nil
		}
	}
	return CommandOption{}, false, nil
}

func (m *memoryStore) stale(sess *BookingContext) bool {
	return m.now().Sub(sess.UpdatedAt) > m.ttl
}
