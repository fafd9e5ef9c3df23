package detector

import (
	"sort"
	"sync"
)

// HostState is the lifetime traffic count of one link-layer source.
type HostState struct {
	Packets uint64 `json:"packets"`
	SynOnly uint64 `json:"syn_only"`
}

// HostCounters tracks packets per source MAC. Counts only grow: they are never
// windowed or reset, unlike the flow table.
type HostCounters struct {
	mu    sync.Mutex
	hosts map[string]*HostState
}

func NewHostCounters() *HostCounters {
	return &HostCounters{hosts: make(map[string]*HostState)}
}

// Record counts one packet from mac and returns the updated state.
func (c *HostCounters) Record(mac string, synOnly bool) HostState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.hosts[mac]
	if !ok {
		st = &HostState{}
		c.hosts[mac] = st
	}
	st.Packets++
	if synOnly {
		st.SynOnly++
	}
	return *st
}

// Get returns the state of mac, if it has been seen.
func (c *HostCounters) Get(mac string) (HostState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.hosts[mac]
	if !ok {
		return HostState{}, false
	}
	return *st, true
}

// HostEntry pairs a MAC with its counts.
type HostEntry struct {
	MAC string `json:"mac"`
	HostState
}

// Snapshot copies every host's counts, sorted by MAC.
func (c *HostCounters) Snapshot() []HostEntry {
	c.mu.Lock()
	out := make([]HostEntry, 0, len(c.hosts))
	for mac, st := range c.hosts {
		out = append(out, HostEntry{MAC: mac, HostState: *st})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out
}
