package flowtable

import (
	"fmt"
	"math/rand"
	"net"
	"testing"
	"time"

	"Go2NetSentry/internal/model"

	"github.com/stretchr/testify/assert"
)

func randomKeys(n int, seed int64) []FlowKey {
	rng := rand.New(rand.NewSource(seed))
	keys := make([]FlowKey, n)
	for i := range keys {
		src := net.IPv4(10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		dst := net.IPv4(192, 168, byte(rng.Intn(256)), byte(rng.Intn(256)))
		keys[i], _ = NewFlowKey(src, dst, 6, uint16(rng.Intn(65535)), 80)
	}
	return keys
}

func TestShardSpread(t *testing.T) {
	const shards = 64
	keys := randomKeys(64000, 1)
	counts := make([]int, shards)
	for _, k := range keys {
		counts[k.hash()%shards]++
	}
	expected := len(keys) / shards
	for i, c := range counts {
		assert.InDelta(t, expected, c, float64(expected)/4, "shard %d", i)
	}
}

func BenchmarkFlowKeyHash(b *testing.B) {
	keys := randomKeys(1024, 2)
	b.ResetTimer()
	var sink uint32
	for i := 0; i < b.N; i++ {
		sink ^= keys[i%len(keys)].hash()
	}
	_ = sink
}

func BenchmarkObserve(b *testing.B) {
	for _, shards := range []uint32{1, 16, 64} {
		b.Run(fmt.Sprintf("Shards_%d", shards), func(b *testing.B) {
			tbl := New(shards)
			keys := randomKeys(4096, 3)
			now := time.Now()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					tbl.Observe(keys[i%len(keys)], now, 64, true, model.TCPFlags{ACK: true})
					i++
				}
			})
		})
	}
}
