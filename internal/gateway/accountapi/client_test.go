package accountapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	brconfig "tradedesk/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, mutate func(*brconfig.APIConfig)) *Client {
	t.Helper()
	cfg := brconfig.APIConfig{BaseURL: baseURL, TimeoutSeconds: 2}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestClient_GetJoinsBaseAndEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[{"Symbol":"BTC"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/api/", nil)
	resp, err := c.Get(context.Background(), "positions")
	require.NoError(t, err)
	assert.Equal(t, "/api/positions", gotPath)
	assert.Empty(t, gotAuth, "no auth header unless configured")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `[{"Symbol":"BTC"}]`, string(resp.Body))
}

func TestClient_AuthHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *brconfig.APIConfig) { cfg.Token = "secret" })
	_, err := c.Get(context.Background(), "account_summary")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)

	c = newTestClient(t, srv.URL, func(cfg *brconfig.APIConfig) { cfg.Username = "u"; cfg.Password = "p" })
	_, err = c.Get(context.Background(), "account_summary")
	require.NoError(t, err)
	assert.Equal(t, "Basic dTpw", gotAuth)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Get(context.Background(), "positions")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestClient_EmptyEndpoint(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", nil)
	_, err := c.Get(context.Background(), "  / ")
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}

func TestClient_ConnectionRefusedOpensBreaker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := newTestClient(t, "http://"+addr, func(cfg *brconfig.APIConfig) {
		cfg.BreakerThreshold = 2
		cfg.BreakerCooldownSeconds = 60
	})
	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "positions")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	_, err = c.Get(context.Background(), "positions")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *brconfig.APIConfig) { cfg.BreakerThreshold = 1 })
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "unknown")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, int32(3), hits.Load(), "every call reaches the backend")
}
