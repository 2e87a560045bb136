package websocket

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the set of live connections that receive broadcasts.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]Peer),
	}
}

// Register adds a peer. Registering the same peer twice is a no-op.
func (r *Registry) Register(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
}

// Unregister removes p and reports whether it was registered.
func (r *Registry) Unregister(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.peers[p.ID()]; !ok || current != p {
		return false
	}
	delete(r.peers, p.ID())
	return true
}

// Snapshot returns a point-in-time copy of the registered peers.
func (r *Registry) Snapshot() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.peers)
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// CloseAll unregisters and closes every peer.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	peers := lo.Values(r.peers)
	r.peers = make(map[string]Peer)
	r.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
}
