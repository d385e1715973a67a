package view

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/format"
)

func builtinView(t *testing.T, name string) Definition {
	t.Helper()
	c, err := NewCatalog("")
	require.NoError(t, err)
	def, ok := c.View(name)
	require.True(t, ok, "view %s", name)
	return def
}

func seriesByID(t *testing.T, res Result, id string) Series {
	t.Helper()
	for _, s := range res.Series {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("series %s not found", id)
	return Series{}
}

func ys(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Y
	}
	return out
}

func columnKeys(tbl Table) []string {
	out := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		out[i] = c.Key
	}
	return out
}

const tradesBody = `[
	{"Time":1700000200000,"Symbol":"ETH","Side":"SELL","Price":2000,"Quantity":1,"PNL":20,"Fee":0.1},
	{"Time":1700000000000,"Symbol":"BTC","Side":"BUY","Price":42000,"Quantity":0.5,"PNL":10,"Fee":0.2},
	{"Time":1700000100000,"Symbol":"BTC","Side":"SELL","Price":41000,"Quantity":0.5,"PNL":-5,"Fee":0.2}
]`

func TestShape_TradeHistory(t *testing.T) {
	def := builtinView(t, "trade_history")
	res, err := NewShaper(nil).Shape(def, []byte(tradesBody))
	require.NoError(t, err)

	assert.False(t, res.Empty)
	assert.Equal(t, []string{"Time", "Symbol", "Side", "Price", "Quantity", "PNL", "Fee"}, columnKeys(res.Table))
	require.Len(t, res.Table.Rows, 3)
	// newest first
	assert.Equal(t, "ETH", res.Table.Rows[0][1].Text)
	assert.Equal(t, "+20.00 USDT", res.Table.Rows[0][5].Text)
	assert.Equal(t, format.SignNegative, res.Table.Rows[1][5].Sign)
	assert.Equal(t, "BTC", res.Table.Rows[2][1].Text)

	cum := seriesByID(t, res, "cumulative_pnl")
	assert.InDeltaSlice(t, []float64{10, 5, 25}, ys(cum.Points), 1e-9)
	assert.Equal(t, format.FormatTimestamp(int64(1700000000000)), cum.Points[0].Label)

	hist := seriesByID(t, res, "pnl_distribution")
	assert.Equal(t, ChartHistogram, hist.Chart)
	total := 0.0
	for _, p := range hist.Points {
		total += p.Y
	}
	assert.Equal(t, 3.0, total)

	scatter := seriesByID(t, res, "price_vs_pnl")
	assert.Equal(t, ChartScatter, scatter.Chart)
	assert.Len(t, scatter.Points, 3)
	sizes := seriesByID(t, res, "size_by_symbol")
	assert.Equal(t, ChartDonut, sizes.Chart)
	assert.Len(t, sizes.Points, 2)
}

func TestShape_DoesNotMutateInput(t *testing.T) {
	def := builtinView(t, "trade_history")
	body := []byte(tradesBody)
	before := append([]byte(nil), body...)
	_, err := NewShaper(nil).Shape(def, body)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, body))
}

func TestShape_SeriesFollowDateOrder(t *testing.T) {
	def := builtinView(t, "pnl_analytics")
	body := `[{"Date":"2024-01-02","PNL":-5},{"Date":"2024-01-01","PNL":10},{"Date":"2024-01-03","PNL":20}]`
	res, err := NewShaper(nil).Shape(def, []byte(body))
	require.NoError(t, err)

	cum := seriesByID(t, res, "cumulative_pnl")
	assert.InDeltaSlice(t, []float64{10, 5, 25}, ys(cum.Points), 1e-9)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, []string{cum.Points[0].Label, cum.Points[1].Label, cum.Points[2].Label})
	require.Len(t, cum.Overlays, 1)
	assert.Equal(t, 1, cum.Overlays[0].Axis)
	assert.InDeltaSlice(t, []float64{50, 25, 125}, ys(cum.Overlays[0].Points), 1e-9)

	daily := seriesByID(t, res, "daily_pnl")
	assert.InDeltaSlice(t, []float64{10, -5, 20}, ys(daily.Points), 1e-9)
	assert.Equal(t, format.SignNegative, daily.Points[1].Sign)
	assert.Empty(t, daily.Overlays, "fewer points than the SMA period")

	assert.Equal(t, "2024-01-03", res.Table.Rows[0][0].Text)
}

func TestShape_DailySMAOverlay(t *testing.T) {
	def := builtinView(t, "pnl_analytics")
	body := `[
		{"Date":"2024-01-01","PNL":1},{"Date":"2024-01-02","PNL":2},{"Date":"2024-01-03","PNL":3},
		{"Date":"2024-01-04","PNL":4},{"Date":"2024-01-05","PNL":5},{"Date":"2024-01-06","PNL":6},
		{"Date":"2024-01-07","PNL":7},{"Date":"2024-01-08","PNL":8}
	]`
	res, err := NewShaper(nil).Shape(def, []byte(body))
	require.NoError(t, err)
	daily := seriesByID(t, res, "daily_pnl")
	require.Len(t, daily.Overlays, 1)
	assert.InDeltaSlice(t, []float64{4, 5}, ys(daily.Overlays[0].Points), 1e-9)
	assert.Equal(t, "2024-01-07", daily.Overlays[0].Points[0].Label)
	assert.Equal(t, 6, daily.Overlays[0].Offset)
}

func TestShape_UntimedRecordsGoLast(t *testing.T) {
	def := builtinView(t, "trade_history")
	body := `[{"Time":200,"PNL":1},{"PNL":2},{"Time":100,"PNL":3}]`
	res, err := NewShaper(nil).Shape(def, []byte(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"Time", "PNL"}, columnKeys(res.Table))
	texts := []string{res.Table.Rows[0][1].Text, res.Table.Rows[1][1].Text, res.Table.Rows[2][1].Text}
	assert.Equal(t, []string{"+1.00 USDT", "+3.00 USDT", "+2.00 USDT"}, texts)
	assert.Equal(t, format.InvalidTime, res.Table.Rows[2][0].Text)

	cum := seriesByID(t, res, "cumulative_pnl")
	assert.InDeltaSlice(t, []float64{3, 4, 6}, ys(cum.Points), 1e-9)
}

func TestShape_BadCellsRenderSentinels(t *testing.T) {
	def := builtinView(t, "trade_history")
	body := `[{"Time":"yesterday","Symbol":"BTC","PNL":"abc"},{"Time":100,"Symbol":"ETH","PNL":4}]`
	res, err := NewShaper(nil).Shape(def, []byte(body))
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 2)
	last := res.Table.Rows[1]
	assert.Equal(t, format.InvalidTime, last[0].Text)
	assert.Equal(t, format.NotAvailable, last[2].Text)

	cum := seriesByID(t, res, "cumulative_pnl")
	assert.InDeltaSlice(t, []float64{4}, ys(cum.Points), 1e-9, "non-numeric PNL is skipped")
}

func TestShape_EmptyList(t *testing.T) {
	def := builtinView(t, "trade_history")
	res, err := NewShaper(nil).Shape(def, []byte(`[]`))
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "No trade history available.", res.EmptyMessage)
	assert.Empty(t, res.Series)
	assert.Empty(t, res.Table.Rows)
}

func TestShape_Malformed(t *testing.T) {
	shaper := NewShaper(nil)
	trades := builtinView(t, "trade_history")
	for _, body := range []string{`{"PNL":1}`, `not json`, `"text"`} {
		_, err := shaper.Shape(trades, []byte(body))
		assert.ErrorIs(t, err, ErrMalformedResponse, body)
	}

	summary := builtinView(t, "account_summary")
	_, err := shaper.Shape(summary, []byte(`[{"Balance":1}]`))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	daily := builtinView(t, "pnl_analytics")
	_, err = shaper.Shape(daily, []byte(`[{"Date":"2024-01-01"}]`))
	assert.ErrorIs(t, err, ErrMalformedResponse, "required PNL missing")
}

func TestShape_AccountSummaryMetrics(t *testing.T) {
	def := builtinView(t, "account_summary")
	res, err := NewShaper(nil).Shape(def, []byte(`{"Balance":1000.5,"Unrealized PNL":-3.1,"Leverage":5}`))
	require.NoError(t, err)
	require.Len(t, res.Metrics, 3)

	assert.Equal(t, "Total Balance", res.Metrics[0].Label)
	assert.Equal(t, "1000.50 USDT", res.Metrics[0].Text)
	require.NotNil(t, res.Metrics[0].Value)
	assert.Equal(t, 1000.5, *res.Metrics[0].Value)

	assert.Equal(t, "-3.10 USDT", res.Metrics[1].Text)
	assert.Equal(t, format.SignNegative, res.Metrics[1].Sign)

	assert.Equal(t, "Leverage", res.Metrics[2].Key)
	assert.Equal(t, "5", res.Metrics[2].Text)

	empty, err := NewShaper(nil).Shape(def, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, empty.Empty)
}

func TestShape_PositionsGroupSum(t *testing.T) {
	def := builtinView(t, "positions")
	body := `[{"Symbol":"BTC","Amount":1},{"Symbol":"ETH","Amount":"2"},{"Symbol":"BTC","Amount":2},{"Symbol":"ETH","Amount":1},{"Amount":4}]`
	res, err := NewShaper(nil).Shape(def, []byte(body))
	require.NoError(t, err)

	pie := seriesByID(t, res, "size_by_symbol")
	assert.Equal(t, ChartPie, pie.Chart)
	require.Len(t, pie.Points, 3)
	assert.Equal(t, "BTC", pie.Points[0].Label)
	assert.Equal(t, 3.0, pie.Points[0].Y)
	assert.Equal(t, "ETH", pie.Points[1].Label)
	assert.Equal(t, 3.0, pie.Points[1].Y)
	assert.Equal(t, "Unknown", pie.Points[2].Label)
}

func TestShape_AliasesResolve(t *testing.T) {
	def := builtinView(t, "trade_analytics")
	body := `[{"Trade Time":100,"Symbol":"BTC","Trade Price":42000,"Trade Amount":0.5,"Trade PNL":12}]`
	res, err := NewShaper(nil).Shape(def, []byte(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"Time", "Symbol", "Price", "Quantity", "PNL"}, columnKeys(res.Table))
	scatter := seriesByID(t, res, "price_vs_pnl")
	require.Len(t, scatter.Points, 1)
	assert.Equal(t, 42000.0, scatter.Points[0].X)
	assert.Equal(t, 12.0, scatter.Points[0].Y)
	assert.Equal(t, "BTC", scatter.Points[0].Group)
}

func TestShape_RequiredColumnsMatchCaseInsensitively(t *testing.T) {
	def := builtinView(t, "pnl_analytics")
	res, err := NewShaper(nil).Shape(def, []byte(`[{"date":"2024-01-01","pnl":10},{"DATE":"2024-01-02","Pnl":-4}]`))
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 2)
	assert.Equal(t, "-4.00 USDT", res.Table.Rows[0][1].Text)

	_, err = NewShaper(nil).Shape(def, []byte(`[{"date":"2024-01-01","pnl":10},{"date":"2024-01-02"}]`))
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), `item 1: missing required column "PNL"`)
}

func TestDefinitionValidate_DecodesNumbersExactly(t *testing.T) {
	def := builtinView(t, "trade_history")
	require.NoError(t, def.Validate([]byte(`[{"PNL":12345678901234567890.5}]`)))
	assert.ErrorIs(t, def.Validate([]byte(`[1, 2]`)), ErrMalformedResponse)
	assert.ErrorIs(t, def.Validate([]byte(`[{"PNL":1}`)), ErrMalformedResponse)
}

func TestShape_HistogramSurvivesExtremePNL(t *testing.T) {
	def := builtinView(t, "trade_history")
	res, err := NewShaper(nil).Shape(def, []byte(`[{"Time":1,"PNL":-1e308},{"Time":2,"PNL":1e308}]`))
	require.NoError(t, err)
	hist := seriesByID(t, res, "pnl_distribution")
	total := 0.0
	for _, p := range hist.Points {
		total += p.Y
	}
	assert.Equal(t, 2.0, total)
}
