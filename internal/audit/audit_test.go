package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"Go2NetSentry/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "events.jsonl")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.PublishBlock(model.BlockEvent{MAC: "00:00:00:00:00:0a", Reason: "packet_rate"}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, l.PublishAlert(model.AlertEvent{Message: "scan", EventID: 4}))
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "block", entries[0].Type)
	assert.Equal(t, "packet_rate", entries[0].Block.Reason)
	assert.Nil(t, entries[0].Alert)
	assert.Equal(t, "alert", entries[1].Type)
	assert.Equal(t, uint32(4), entries[1].Alert.EventID)
}
