// Package chart renders derived view series as echarts pages and PNG snapshots.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradedesk/internal/format"
	"tradedesk/internal/view"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorNeutral       = "#9ca3af"
	colorOverlay       = "#fbbf24"
	colorPercent       = "#22d3ee"

	defaultWidthPx  = 1200
	defaultHeightPx = 480
)

// ErrNoSeries is returned when none of the series has points to draw.
var ErrNoSeries = errors.New("no chartable series")

type Options struct {
	Theme    string
	WidthPx  int
	HeightPx int
}

type Renderer struct {
	cfg Options
}

func NewRenderer(o Options) *Renderer {
	if o.Theme == "" {
		o.Theme = types.ThemeWesteros
	}
	if o.WidthPx <= 0 {
		o.WidthPx = defaultWidthPx
	}
	if o.HeightPx <= 0 {
		o.HeightPx = defaultHeightPx
	}
	return &Renderer{cfg: o}
}

// RenderHTML writes a standalone page with one chart per non-empty series.
func (r *Renderer) RenderHTML(w io.Writer, title string, series []view.Series) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = title
	for _, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		c, err := r.Chart(s)
		if err != nil {
			return err
		}
		page.AddCharts(c)
	}
	if len(page.Charts) == 0 {
		return ErrNoSeries
	}
	return page.Render(w)
}

// HTML is RenderHTML into a byte slice.
func (r *Renderer) HTML(title string, series []view.Series) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.RenderHTML(&buf, title, series); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Chart builds the echarts chart for one series according to its chart type.
func (r *Renderer) Chart(s view.Series) (components.Charter, error) {
	switch s.Chart {
	case view.ChartPie:
		return r.pie(s, false), nil
	case view.ChartDonut:
		return r.pie(s, true), nil
	case view.ChartBar, view.ChartHistogram:
		return r.bar(s), nil
	case view.ChartLine:
		return r.line(s), nil
	case view.ChartScatter:
		return r.scatter(s), nil
	default:
		return nil, fmt.Errorf("series %s: unsupported chart %q", s.ID, s.Chart)
	}
}

func (r *Renderer) globals(s view.Series, legend bool) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           r.cfg.Theme,
			Width:           fmt.Sprintf("%dpx", r.cfg.WidthPx),
			Height:          fmt.Sprintf("%dpx", r.cfg.HeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      s.Title,
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 16},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(legend), Top: "30", TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func (r *Renderer) axes(s view.Series, xType string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithXAxisOpts(opts.XAxis{
			Name:      s.XLabel,
			Type:      xType,
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      s.YLabel,
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	}
}

func (r *Renderer) pie(s view.Series, donut bool) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(r.globals(s, true)...)
	data := make([]opts.PieData, 0, len(s.Points))
	for _, p := range s.Points {
		data = append(data, opts.PieData{Name: p.Label, Value: round(p.Y, 4)})
	}
	radius := "70%"
	var pieOpts opts.PieChart
	if donut {
		pieOpts.Radius = []string{"40%", radius}
	} else {
		pieOpts.Radius = radius
	}
	pie.AddSeries(s.YLabel, data,
		charts.WithPieChartOpts(pieOpts),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%", Color: colorTextPrimary}),
	)
	return pie
}

func (r *Renderer) bar(s view.Series) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(r.globals(s, len(s.Overlays) > 0), r.axes(s, "category")...)...)
	x := labels(s.Points)
	data := make([]opts.BarData, len(s.Points))
	for i, p := range s.Points {
		color := signColor(p.Sign)
		if s.Chart == view.ChartHistogram {
			color = colorBull
			if p.Sign == format.SignNegative {
				color = colorBear
			}
		}
		data[i] = opts.BarData{Value: round(p.Y, 4), ItemStyle: &opts.ItemStyle{Color: color}}
	}
	bar.SetXAxis(x)
	bar.AddSeries(seriesName(s), data)
	if len(s.Overlays) > 0 {
		bar.Overlap(r.overlayLine(s, x))
	}
	return bar
}

func (r *Renderer) line(s view.Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(append(r.globals(s, len(s.Overlays) > 0), r.axes(s, "category")...)...)
	x := labels(s.Points)
	line.SetXAxis(x)
	line.AddSeries(seriesName(s), lineData(s.Points, len(x)),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorBull, Width: 2}),
	)
	for _, o := range s.Overlays {
		seriesOpts := []charts.SeriesOpts{
			charts.WithLineStyleOpts(opts.LineStyle{Color: overlayColor(o), Width: 2, Type: "dashed"}),
		}
		if o.Axis > 0 {
			seriesOpts = append(seriesOpts, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: o.Axis, ShowSymbol: opts.Bool(false)}))
		}
		line.AddSeries(o.Name, alignLine(x, o), seriesOpts...)
	}
	if hasSecondaryAxis(s) {
		line.ExtendYAxis(opts.YAxis{
			Name:      "%",
			Position:  "right",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary, Formatter: "{value}%"},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		})
	}
	return line
}

func (r *Renderer) overlayLine(s view.Series, x []string) *charts.Line {
	line := charts.NewLine()
	line.SetXAxis(x)
	for _, o := range s.Overlays {
		line.AddSeries(o.Name, alignLine(x, o),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: overlayColor(o), Width: 2}),
		)
	}
	return line
}

// scatter draws one series per group so every group gets its own colour.
func (r *Renderer) scatter(s view.Series) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(append(r.globals(s, true), r.axes(s, "value")...)...)
	groups := make([]string, 0)
	byGroup := make(map[string][]opts.ScatterData)
	for _, p := range s.Points {
		g := p.Group
		if g == "" {
			g = s.YLabel
		}
		if _, ok := byGroup[g]; !ok {
			groups = append(groups, g)
		}
		byGroup[g] = append(byGroup[g], opts.ScatterData{
			Value:      []any{round(p.X, 6), round(p.Y, 4)},
			SymbolSize: 10,
		})
	}
	for _, g := range groups {
		sc.AddSeries(g, byGroup[g])
	}
	return sc
}

func labels(points []view.Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label
	}
	return out
}

func lineData(points []view.Point, length int) []opts.LineData {
	out := make([]opts.LineData, length)
	for i := 0; i < length && i < len(points); i++ {
		out[i] = opts.LineData{Value: round(points[i].Y, 4)}
	}
	return out
}

// alignLine places overlay points on the base x axis by position;
// slots before the offset stay empty so the overlay starts where its data starts.
func alignLine(x []string, o view.Line) []opts.LineData {
	out := make([]opts.LineData, len(x))
	for i := range out {
		out[i] = opts.LineData{Value: nil}
	}
	for j, p := range o.Points {
		i := o.Offset + j
		if i < 0 || i >= len(x) {
			continue
		}
		out[i] = opts.LineData{Value: round(p.Y, 4)}
	}
	return out
}

func hasSecondaryAxis(s view.Series) bool {
	for _, o := range s.Overlays {
		if o.Axis > 0 {
			return true
		}
	}
	return false
}

func overlayColor(o view.Line) string {
	if o.Axis > 0 {
		return colorPercent
	}
	return colorOverlay
}

func signColor(sign format.Sign) string {
	switch sign {
	case format.SignPositive:
		return colorBull
	case format.SignNegative:
		return colorBear
	default:
		return colorNeutral
	}
}

func seriesName(s view.Series) string {
	if s.YLabel != "" {
		return s.YLabel
	}
	return s.Title
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
