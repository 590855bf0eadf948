package node

import (
	"net/netip"
	"sync"
	"time"
)

// peerCutoff is how long a peer survives without contact.
const peerCutoff = 5 * time.Minute

// Peers tracks known UDP endpoints and when they were last heard from.
type Peers struct {
	mu      sync.Mutex
	entries map[netip.AddrPort]time.Time
}

func NewPeers() *Peers {
	return &Peers{entries: make(map[netip.AddrPort]time.Time)}
}

// Contacted records activity from an endpoint. Unspecified or zero-port
// endpoints are ignored.
func (p *Peers) Contacted(endpoint netip.AddrPort) {
	if !endpoint.IsValid() || endpoint.Port() == 0 || endpoint.Addr().IsUnspecified() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[endpoint] = time.Now()
}

// List returns the live peer set.
func (p *Peers) List() []netip.AddrPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]netip.AddrPort, 0, len(p.entries))
	for endpoint := range p.entries {
		out = append(out, endpoint)
	}
	return out
}

// Purge drops peers not heard from within the cutoff and returns how many
// remain.
func (p *Peers) Purge() int {
	cutoff := time.Now().Add(-peerCutoff)
	p.mu.Lock()
	defer p.mu.Unlock()
	for endpoint, seen := range p.entries {
		if seen.Before(cutoff) {
			delete(p.entries, endpoint)
		}
	}
	return len(p.entries)
}

// Sample returns up to n peers for keepalive gossip.
func (p *Peers) Sample(n int) []netip.AddrPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]netip.AddrPort, 0, n)
	for endpoint := range p.entries {
		if len(out) == n {
			break
		}
		out = append(out, endpoint)
	}
	return out
}
