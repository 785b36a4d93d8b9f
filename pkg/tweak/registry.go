package tweak

import "sync"

// Entry is one published tweak. Tweak is nil when setup failed, and Err
// explains why.
type Entry struct {
	Key   string
	Name  string
	Tweak Tweak
	Err   error
}

// Registry collects tweaks as their setup finishes. Entries are append-only
// and arrive in no particular order.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
	ready   bool
	closed  bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Publish appends e. After Close the tweak is released immediately instead.
func (r *Registry) Publish(e Entry) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if e.Tweak != nil {
			e.Tweak.Close()
		}
		return
	}
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
}

func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Close releases every published tweak, newest first.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.closed = true
	r.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Tweak != nil {
			entries[i].Tweak.Close()
		}
	}
}
