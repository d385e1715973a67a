package fetchlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/fetch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "fetches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	entries := []fetch.Entry{
		{Endpoint: "positions", OK: true, Status: 200, DurationMS: 12, At: base},
		{Endpoint: "trade_history", OK: false, Warning: "Error fetching data: boom", At: base.Add(time.Second)},
		{Endpoint: "positions", OK: true, Cached: true, At: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, s.RecordFetch(ctx, e))
	}

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "positions", all[0].Endpoint)
	assert.True(t, all[0].Cached)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), all[0].Timestamp)

	failed, err := s.List(ctx, Query{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "Error fetching data: boom", failed[0].Warning)
	assert.False(t, failed[0].OK)

	positions, err := s.List(ctx, Query{Endpoint: "positions", Limit: 1})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(0), positions[0].DurationMS)

	n, err := s.Prune(ctx, base.Add(1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_Closed(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "fetches.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Error(t, s.RecordFetch(context.Background(), fetch.Entry{Endpoint: "x"}))
	assert.NoError(t, s.Close())

	_, err = NewStore("")
	assert.Error(t, err)
}
