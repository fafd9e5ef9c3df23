package detector

import (
	"sort"
	"sync"
	"time"
)

// BlockEntry describes one blocked host.
type BlockEntry struct {
	MAC        string    `json:"mac"`
	Reason     Reason    `json:"reason"`
	DatapathID uint64    `json:"datapath_id"`
	BlockedAt  time.Time `json:"blocked_at"`
}

// BlockRegistry is the set of MACs with a drop rule. Membership is permanent.
type BlockRegistry struct {
	mu      sync.RWMutex
	blocked map[string]BlockEntry
}

func NewBlockRegistry() *BlockRegistry {
	return &BlockRegistry{blocked: make(map[string]BlockEntry)}
}

// IsBlocked reports whether mac is in the registry.
func (r *BlockRegistry) IsBlocked(mac string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blocked[mac]
	return ok
}

// TryBlock adds entry and returns true, or returns false when entry.MAC is already
// present. Exactly one concurrent caller per MAC gets true and is responsible for
// installing the drop rule.
func (r *BlockRegistry) TryBlock(entry BlockEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocked[entry.MAC]; ok {
		return false
	}
	r.blocked[entry.MAC] = entry
	return true
}

// Len returns the number of blocked hosts.
func (r *BlockRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blocked)
}

// List returns every blocked host in blocking order.
func (r *BlockRegistry) List() []BlockEntry {
	r.mu.RLock()
	out := make([]BlockEntry, 0, len(r.blocked))
	for _, e := range r.blocked {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockedAt.Equal(out[j].BlockedAt) {
			return out[i].MAC < out[j].MAC
		}
		return out[i].BlockedAt.Before(out[j].BlockedAt)
	})
	return out
}
