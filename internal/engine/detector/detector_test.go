package detector

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const macM = "00:00:00:00:00:0a"

func newDetector() *Detector {
	return New(NewHostCounters(), NewBlockRegistry(), DefaultThresholds)
}

func TestPacketThresholdIsExclusive(t *testing.T) {
	d := newDetector()
	for i := 1; i <= 7; i++ {
		dec := d.Inspect(1, macM, false, false)
		require.False(t, dec.Block, "packet %d", i)
		assert.Equal(t, uint64(i), dec.State.Packets)
	}

	dec := d.Inspect(1, macM, false, false)
	assert.True(t, dec.Block)
	assert.True(t, dec.Install)
	assert.Equal(t, ReasonPacketRate, dec.Reason)
	assert.True(t, d.Registry().IsBlocked(macM))
}

func TestSynRuleUsesOnlyBareSyn(t *testing.T) {
	d := New(NewHostCounters(), NewBlockRegistry(), Thresholds{Packets: 100, Syn: 10})

	// SYN+ACK and non-TCP packets never count towards the SYN rule.
	for i := 0; i < 20; i++ {
		d.Inspect(1, macM, true, false)
		d.Inspect(1, macM, false, true)
	}
	st, _ := d.Counters().Get(macM)
	assert.Zero(t, st.SynOnly)

	for i := 1; i <= 10; i++ {
		require.False(t, d.Inspect(1, macM, true, true).Block)
	}
	dec := d.Inspect(1, macM, true, true)
	assert.True(t, dec.Block)
	assert.Equal(t, ReasonSynFlood, dec.Reason)
	assert.Equal(t, uint64(11), dec.State.SynOnly)
}

func TestPacketRuleWinsOverSynRule(t *testing.T) {
	d := newDetector()
	var dec Decision
	for i := 0; i < 8; i++ {
		dec = d.Inspect(1, macM, true, true)
	}
	assert.True(t, dec.Block)
	assert.Equal(t, ReasonPacketRate, dec.Reason)
}

func TestOnlyOneInstallUnderContention(t *testing.T) {
	d := newDetector()
	var installs atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Inspect(1, macM, false, false).Install {
				installs.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), installs.Load())
	assert.Equal(t, 1, d.Registry().Len())
}

func TestCountersAreMonotonic(t *testing.T) {
	c := NewHostCounters()
	c.Record("a", true)
	c.Record("a", false)
	c.Record("b", false)

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].MAC)
	assert.Equal(t, HostState{Packets: 2, SynOnly: 1}, snap[0].HostState)
	assert.Equal(t, uint64(3), c.Record("a", false).Packets)
}

func TestRegistryTryBlockIsIdempotent(t *testing.T) {
	r := NewBlockRegistry()
	assert.True(t, r.TryBlock(BlockEntry{MAC: macM, Reason: ReasonPacketRate}))
	assert.False(t, r.TryBlock(BlockEntry{MAC: macM, Reason: ReasonSynFlood}))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, ReasonPacketRate, list[0].Reason)
}
