// Package session tracks open client streams and routes posted messages to
// them.
//
// The Registry maps a session id to a Handle. It holds a non-owning
// reference: the stream that created the handle decides when it goes away
// and calls Unregister. The Router applies the delivery policy on top of the
// registry, including the optional single-tenant fallback to the most
// recently opened session.
package session

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Handle delivers one inbound protocol message to a session.
type Handle interface {
	SessionID() string
	Deliver(ctx context.Context, message json.RawMessage) error
}

// Entry is a registered session as seen by callers of Entries.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Handle    Handle
}

type entry struct {
	Entry
	seq uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	clock clockwork.Clock

	mu         sync.RWMutex
	entries    map[string]entry
	mostRecent string
	seq        uint64
}

func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		entries: map[string]entry{},
	}
}

// Register inserts or overwrites the entry for id and marks it most recent.
func (r *Registry) Register(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.entries[id] = entry{
		Entry: Entry{ID: id, CreatedAt: r.clock.Now(), Handle: h},
		seq:   r.seq,
	}
	r.mostRecent = id
}

// Unregister removes id. Removing an absent id is a no-op. When the most
// recent entry goes away, the newest remaining entry takes its place.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	if r.mostRecent != id {
		return
	}
	r.mostRecent = ""
	var newest uint64
	for other, e := range r.entries {
		if e.seq > newest {
			newest = e.seq
			r.mostRecent = other
		}
	}
}

func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.Handle, true
}

// MostRecent returns the handle of the most recently registered live session.
func (r *Registry) MostRecent() (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.mostRecent == "" {
		return nil, false
	}
	return r.entries[r.mostRecent].Handle, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a snapshot ordered from oldest to newest registration.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	snapshot := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].seq < snapshot[j].seq })
	res := make([]Entry, len(snapshot))
	for i, e := range snapshot {
		res[i] = e.Entry
	}
	return res
}
