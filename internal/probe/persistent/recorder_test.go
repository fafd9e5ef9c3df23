package persistent

import (
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesFramesInOrder(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), 1600, 8)
	require.NoError(t, err)

	start := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		data := []byte{byte(i), 1, 2, 3}
		r.Enqueue(gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * time.Millisecond), CaptureLength: 4, Length: 4}, data)
	}
	require.NoError(t, r.Stop())

	f, err := os.Open(r.Path())
	require.NoError(t, err)
	defer f.Close()
	rd, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		data, ci, err := rd.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, byte(i), data[0])
		assert.True(t, ci.Timestamp.Equal(start.Add(time.Duration(i)*time.Millisecond)))
	}
}
