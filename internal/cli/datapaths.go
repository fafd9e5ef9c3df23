package cli

import "sync"

// datapathSet calls connected the first time each datapath id is observed.
type datapathSet struct {
	mu        sync.Mutex
	seen      map[uint64]struct{}
	connected func(dpid uint64)
}

func newDatapathSet(connected func(dpid uint64)) *datapathSet {
	return &datapathSet{seen: make(map[uint64]struct{}), connected: connected}
}

func (s *datapathSet) observe(dpid uint64) {
	s.mu.Lock()
	_, ok := s.seen[dpid]
	if !ok {
		s.seen[dpid] = struct{}{}
	}
	s.mu.Unlock()
	if !ok {
		s.connected(dpid)
	}
}
