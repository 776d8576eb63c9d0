package chat

import (
	"container/list"
	"context"
	"sync"
)

// Session is a handle to a provider-side multi-turn dialogue context.
// Implementations that hold releasable resources may also implement
// io.Closer; Close is called on eviction.
type Session interface {
	Key() string
}

// SessionFactory initializes the dialogue context for a key on first use:
// the fixed system instruction plus the fixed tool declaration set.
type SessionFactory func(ctx context.Context, key string) (Session, error)

// SessionRegistry maps opaque session keys to dialogue contexts. A
// context is created lazily on first use and returned unchanged
// afterwards, so multi-turn state (including prior tool exchanges)
// persists. No two keys share a context.
//
// Growth is bounded by an LRU policy: when capacity is exceeded the least
// recently used session is evicted. Capacity 0 disables eviction.
type SessionRegistry struct {
	mu       sync.Mutex
	capacity int
	factory  SessionFactory
	entries  map[string]*list.Element
	order    list.List // front = most recently used
}

type sessionEntry struct {
	key     string
	session Session
}

// NewSessionRegistry creates a registry with the given LRU capacity.
func NewSessionRegistry(capacity int, factory SessionFactory) *SessionRegistry {
	return &SessionRegistry{
		capacity: capacity,
		factory:  factory,
		entries:  make(map[string]*list.Element),
	}
}

// GetOrCreate returns the dialogue context for key, creating it on first
// use. The returned session is marked most recently used.
func (r *SessionRegistry) GetOrCreate(ctx context.Context, key string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.entries[key]; ok {
		r.order.MoveToFront(el)
		return el.Value.(*sessionEntry).session, nil
	}

	session, err := r.factory(ctx, key)
	if err != nil {
		return nil, err
	}
	r.entries[key] = r.order.PushFront(&sessionEntry{key: key, session: session})
	r.evictLocked()
	return session, nil
}

func (r *SessionRegistry) evictLocked() {
	if r.capacity <= 0 {
		return
	}
	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		if oldest == nil {
			return
		}
		entry := r.order.Remove(oldest).(*sessionEntry)
		delete(r.entries, entry.key)
		if closer, ok := entry.session.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Contains reports whether a session exists for key without touching its
// recency.
func (r *SessionRegistry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}
