package flowtable

import (
	"sync"
	"time"

	"Go2NetSentry/internal/model"
)

const defaultShardCount = 64

// FlowRecord holds the running statistics of one flow within the current window.
type FlowRecord struct {
	Key       FlowKey
	StartTime time.Time
	LastSeen  time.Time
	Forward   uint64
	Backward  uint64
	Bytes     uint64
	SYN       uint64
	ACK       uint64
	PSH       uint64
	RST       uint64
	// IATSum accumulates LastSeen deltas. Concurrent workers may observe packets of
	// the same flow out of order, so individual deltas can be negative.
	IATSum   time.Duration
	Protocol uint8
}

// Packets is the total number of packets seen in both directions.
func (r *FlowRecord) Packets() uint64 {
	return r.Forward + r.Backward
}

type shard struct {
	mu    sync.Mutex
	flows map[FlowKey]*FlowRecord
}

// Table is a sharded map of flow records. Observe locks one shard; DrainAndReset
// locks every shard so that no observation straddles a window boundary.
type Table struct {
	shards     []*shard
	shardCount uint32
}

// New creates a flow table with numShards shards.
func New(numShards uint32) *Table {
	if numShards == 0 || numShards >= 32768 {
		numShards = defaultShardCount
	}
	t := &Table{
		shards:     make([]*shard, numShards),
		shardCount: numShards,
	}
	for i := range t.shards {
		t.shards[i] = &shard{flows: make(map[FlowKey]*FlowRecord)}
	}
	return t
}

// Observe folds a single packet into the flow identified by key.
func (t *Table) Observe(key FlowKey, ts time.Time, length int, fromLow bool, flags model.TCPFlags) {
	s := t.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.flows[key]
	if !ok {
		rec = &FlowRecord{
			Key:       key,
			StartTime: ts,
			LastSeen:  ts,
			Protocol:  key.Protocol,
		}
		s.flows[key] = rec
	} else {
		rec.IATSum += ts.Sub(rec.LastSeen)
		rec.LastSeen = ts
	}

	if fromLow {
		rec.Forward++
	} else {
		rec.Backward++
	}
	rec.Bytes += uint64(length)
	if flags.SYN {
		rec.SYN++
	}
	if flags.ACK {
		rec.ACK++
	}
	if flags.PSH {
		rec.PSH++
	}
	if flags.RST {
		rec.RST++
	}
}

// DrainAndReset returns every record in the table and leaves it empty. The swap
// happens with all shards locked, so a concurrent Observe lands either entirely in
// the returned window or entirely in the next one.
func (t *Table) DrainAndReset() []FlowRecord {
	for _, s := range t.shards {
		s.mu.Lock()
	}
	drained := make([]map[FlowKey]*FlowRecord, len(t.shards))
	for i, s := range t.shards {
		drained[i] = s.flows
		s.flows = make(map[FlowKey]*FlowRecord)
	}
	for _, s := range t.shards {
		s.mu.Unlock()
	}

	var records []FlowRecord
	for _, flows := range drained {
		for _, rec := range flows {
			records = append(records, *rec)
		}
	}
	return records
}

// Len returns the number of flows in the current window.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.flows)
		s.mu.Unlock()
	}
	return n
}

// getShard returns the appropriate shard for a given key.
func (t *Table) getShard(key FlowKey) *shard {
	return t.shards[key.hash()%t.shardCount]
}
