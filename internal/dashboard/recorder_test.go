package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/view"
)

func newTestRecorder(t *testing.T, f Fetcher, store SnapshotStore) *Recorder {
	t.Helper()
	catalog, err := view.NewCatalog("")
	require.NoError(t, err)
	r := NewRecorder(catalog, f, nil, store, time.Minute)
	r.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return r
}

func TestRecorder_RecordOnce(t *testing.T) {
	f := new(MockFetcher)
	body := `{"Balance":1000.5,"Unrealized PNL":-2,"Margin Balance":"998.5","Note":"x"}`
	f.On("Fetch", mock.Anything, "account_summary").Return(okResult("account_summary", body))
	store := &memSnapshots{}

	rec, err := newTestRecorder(t, f, store).RecordOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	require.NotNil(t, rec.Balance)
	assert.Equal(t, 1000.5, *rec.Balance)
	require.NotNil(t, rec.UnrealizedPNL)
	assert.Equal(t, -2.0, *rec.UnrealizedPNL)
	assert.Equal(t, 998.5, rec.Metrics["Margin Balance"])
	assert.NotContains(t, rec.Metrics, "Note")
	assert.JSONEq(t, body, string(rec.Raw))
	assert.Len(t, store.recs, 1)
}

func TestRecorder_FetchFailure(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, "account_summary").Return(failResult("account_summary"))
	store := &memSnapshots{}

	_, err := newTestRecorder(t, f, store).RecordOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, store.recs)
}

func TestRecorder_RunStopsOnCancel(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, "account_summary").Return(okResult("account_summary", `{"Balance":1}`))
	store := &memSnapshots{}
	r := newTestRecorder(t, f, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool {
		recs, _ := store.List(context.Background(), time.Time{}, 0)
		return len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}
