package store

import (
	"context"
	"fmt"
	"sync"
)

const watcherBuffer = 16

// MemoryStore keeps the record in process. Used for development without redis and
// in tests, where write failures and connectivity can be driven by hand.
type MemoryStore struct {
	mu        sync.Mutex
	record    SessionRecord
	writeErr  error
	connected bool
	watchers  map[chan SessionRecord]struct{}
	links     map[chan bool]struct{}
}

// NewMemoryStore returns a connected, zeroed store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connected: true,
		watchers:  make(map[chan SessionRecord]struct{}),
		links:     make(map[chan bool]struct{}),
	}
}

// FailWrites makes every following write fail with err; nil restores writes.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// SetConnected flips the connectivity signal.
func (m *MemoryStore) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected == connected {
		return
	}
	m.connected = connected
	for ch := range m.links {
		select {
		case ch <- connected:
		default:
		}
	}
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, u SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, m.writeErr)
	}
	if u.Empty() {
		return nil
	}
	m.record = u.Apply(m.record)
	m.broadcastLocked()
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context) (SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record, nil
}

// Reset implements Store.
func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, m.writeErr)
	}
	m.record = SessionRecord{}
	m.broadcastLocked()
	return nil
}

// Watch implements Store.
func (m *MemoryStore) Watch(ctx context.Context) (<-chan SessionRecord, error) {
	ch := make(chan SessionRecord, watcherBuffer)

	m.mu.Lock()
	ch <- m.record
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

// Connectivity implements Store.
func (m *MemoryStore) Connectivity(ctx context.Context) <-chan bool {
	ch := make(chan bool, watcherBuffer)

	m.mu.Lock()
	ch <- m.connected
	m.links[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.links, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch
}

func (m *MemoryStore) broadcastLocked() {
	for ch := range m.watchers {
		offerLatest(ch, m.record)
	}
}

// offerLatest never blocks: a full buffer loses its oldest snapshot so the newest
// full record is always delivered.
func offerLatest(ch chan SessionRecord, rec SessionRecord) {
	select {
	case ch <- rec:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- rec:
	default:
	}
}
