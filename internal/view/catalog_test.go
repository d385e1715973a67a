package view

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "views.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCatalog_Builtin(t *testing.T) {
	c, err := NewCatalog("")
	require.NoError(t, err)

	views := c.Views()
	require.Len(t, views, 10)
	assert.Equal(t, "account_summary", views[0].Name)

	page, ok := c.Page("Analytics")
	require.True(t, ok)
	assert.Equal(t, []string{"pnl_analytics", "trade_analytics"}, page.Views)

	_, ok = c.View("nope")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Snapshot().Version)
}

func TestCatalog_FileOverrides(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), `
views:
  balances:
    endpoint: /account_summary/
    payload: object
    columns:
      - key: Balance
        kind: money
  trade_history:
    title: Fills
    columns:
      - key: Time
        kind: timestamp
      - key: PNL
        kind: pnl
    time_column: Time
    hide_passthrough: true
pages:
  - name: home
    views: [balances, trade_history]
`)
	c, err := NewCatalog(path)
	require.NoError(t, err)

	def, ok := c.View("balances")
	require.True(t, ok)
	assert.Equal(t, "account_summary", def.Endpoint)
	assert.Equal(t, "Balances", def.Title)

	trades, ok := c.View("trade_history")
	require.True(t, ok)
	assert.Equal(t, "Fills", trades.Title)
	assert.True(t, trades.HidePassthru)

	_, ok = c.View("positions")
	assert.True(t, ok, "builtin views stay available")

	pages := c.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, "Home", pages[0].Title)
}

func TestCatalog_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": "views:\n  x:\n    colums: []\n",
		"bad kind":      "views:\n  x:\n    columns:\n      - key: a\n        kind: blob\n",
		"series column": "views:\n  x:\n    columns:\n      - key: a\n    series:\n      - id: s\n        kind: histogram\n        y: b\n",
		"time column":   "views:\n  x:\n    columns:\n      - key: a\n    time_column: a\n",
		"page ref":      "pages:\n  - name: p\n    views: [missing]\n",
		"object series": "views:\n  x:\n    payload: object\n    columns:\n      - key: a\n        kind: number\n    series:\n      - id: s\n        kind: histogram\n        y: a\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCatalog(writeCatalog(t, t.TempDir(), body))
			assert.Error(t, err)
		})
	}
}

func TestCatalog_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, "pages:\n  - name: only\n    views: [positions]\n")
	c, err := NewCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Pages(), 1)

	writeCatalog(t, dir, "pages:\n  - name: broken\n    views: [missing]\n")
	require.Error(t, c.reload())
	assert.Equal(t, "only", c.Pages()[0].Name)
	assert.Equal(t, int64(1), c.Snapshot().Version)

	writeCatalog(t, dir, "pages:\n  - name: a\n    views: [positions]\n  - name: b\n    views: [open_orders]\n")
	require.NoError(t, c.reload())
	assert.Len(t, c.Pages(), 2)
	assert.Equal(t, int64(2), c.Snapshot().Version)
}

func TestCatalog_CustomSchema(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), `
views:
  strict:
    endpoint: positions
    columns:
      - key: Symbol
    schema:
      type: array
      maxItems: 1
`)
	c, err := NewCatalog(path)
	require.NoError(t, err)
	def, _ := c.View("strict")

	require.NoError(t, def.Validate([]byte(`[{"Symbol":"BTC"}]`)))
	assert.ErrorIs(t, def.Validate([]byte(`[{},{}]`)), ErrMalformedResponse)
}
