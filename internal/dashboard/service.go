// Package dashboard renders catalog views and pages from live backend data.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/chart"
	"tradedesk/internal/fetch"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/fetchlog"
	"tradedesk/internal/store/snapshot"
	"tradedesk/internal/view"
)

// Fetcher is satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) fetch.Result
}

// Catalog is satisfied by *view.Catalog.
type Catalog interface {
	View(name string) (view.Definition, bool)
	Page(name string) (view.Page, bool)
	Pages() []view.Page
	Views() []view.Definition
}

type SnapshotStore interface {
	Save(ctx context.Context, rec snapshot.Record) (snapshot.Record, error)
	List(ctx context.Context, since time.Time, limit int) ([]snapshot.Record, error)
}

type FetchLog interface {
	List(ctx context.Context, q fetchlog.Query) ([]fetchlog.Record, error)
}

var (
	ErrChartsDisabled   = errors.New("chart rendering not configured")
	ErrSnapshotsOff     = errors.New("snapshot recording not configured")
	ErrFetchLogDisabled = errors.New("fetch journal not configured")
)

// ViewRender is one shaped view plus the fetch outcome behind it.
type ViewRender struct {
	view.Result
	Warning   string    `json:"warning,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PageRender is one rendered menu page.
type PageRender struct {
	ID         string       `json:"id"`
	Page       string       `json:"page"`
	Title      string       `json:"title"`
	Views      []ViewRender `json:"views"`
	Warnings   []string     `json:"warnings,omitempty"`
	RenderedAt time.Time    `json:"rendered_at"`
}

type Option func(*Service)

func WithSnapshots(store SnapshotStore) Option {
	return func(s *Service) { s.snapshots = store }
}

func WithFetchLog(log FetchLog) Option {
	return func(s *Service) { s.fetchLog = log }
}

func WithCache(c *fetch.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithCharts enables chart pages; pngTimeout bounds headless renders.
func WithCharts(r *chart.Renderer, pngTimeout time.Duration) Option {
	return func(s *Service) {
		s.charts = r
		s.pngTimeout = pngTimeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	catalog    Catalog
	fetcher    Fetcher
	shaper     *view.Shaper
	snapshots  SnapshotStore
	fetchLog   FetchLog
	cache      *fetch.Cache
	charts     *chart.Renderer
	pngTimeout time.Duration
	now        func() time.Time
}

func NewService(catalog Catalog, fetcher Fetcher, shaper *view.Shaper, opts ...Option) *Service {
	if shaper == nil {
		shaper = view.NewShaper(nil)
	}
	s := &Service{catalog: catalog, fetcher: fetcher, shaper: shaper, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Pages lists the menu, with the equity page appended when snapshots are kept.
func (s *Service) Pages() []view.Page {
	pages := s.catalog.Pages()
	if s.snapshots != nil {
		pages = append(pages, equityPage())
	}
	return pages
}

func (s *Service) Views() []view.Definition {
	return s.catalog.Views()
}

// RenderView fetches and shapes one view. Fetch failures and malformed
// payloads come back as a warning on an empty view; only an unknown name
// is an error.
func (s *Service) RenderView(ctx context.Context, name string) (ViewRender, error) {
	def, ok := s.catalog.View(name)
	if !ok {
		if name == equityView && s.snapshots != nil {
			return s.Equity(ctx)
		}
		return ViewRender{}, fmt.Errorf("%w: %s", view.ErrUnknownView, name)
	}
	return s.render(ctx, def), nil
}

// RenderPage renders every view of a page in order, one fetch after another.
func (s *Service) RenderPage(ctx context.Context, name string) (PageRender, error) {
	if name == EquityPage && s.snapshots != nil {
		return s.renderEquityPage(ctx)
	}
	page, ok := s.catalog.Page(name)
	if !ok {
		return PageRender{}, fmt.Errorf("%w: %s", view.ErrUnknownPage, name)
	}
	out := PageRender{
		ID:    uuid.NewString(),
		Page:  page.Name,
		Title: page.Title,
		Views: make([]ViewRender, 0, len(page.Views)),
	}
	for _, viewName := range page.Views {
		if err := ctx.Err(); err != nil {
			return PageRender{}, err
		}
		def, ok := s.catalog.View(viewName)
		if !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("view %s is no longer defined", viewName))
			continue
		}
		vr := s.render(ctx, def)
		if vr.Warning != "" {
			out.Warnings = append(out.Warnings, vr.Warning)
		}
		out.Views = append(out.Views, vr)
	}
	out.RenderedAt = s.now()
	return out, nil
}

func (s *Service) render(ctx context.Context, def view.Definition) ViewRender {
	res := s.fetcher.Fetch(ctx, def.Endpoint)
	out := ViewRender{Cached: res.Cached, FetchedAt: res.FetchedAt}
	if !res.OK() {
		out.Result = view.EmptyResult(def)
		out.Warning = res.Warning
		return out
	}
	shaped, err := s.shaper.Shape(def, res.Body)
	if err != nil {
		logger.Warnf("view %s: %v", def.Name, err)
		out.Result = view.EmptyResult(def)
		out.Warning = fmt.Sprintf("Unexpected data from %s: %v", def.Endpoint, err)
		return out
	}
	out.Result = shaped
	return out
}

// RefreshCache drops cached bodies for endpoint, or all of them when empty.
func (s *Service) RefreshCache(endpoint string) int {
	n := s.cache.Invalidate(endpoint)
	logger.Infof("cache refresh endpoint=%q dropped=%d", endpoint, n)
	return n
}

// Snapshots lists archived account summaries, oldest first.
func (s *Service) Snapshots(ctx context.Context, since time.Time, limit int) ([]snapshot.Record, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsOff
	}
	return s.snapshots.List(ctx, since, limit)
}

// Fetches lists journalled fetch attempts, newest first.
func (s *Service) Fetches(ctx context.Context, q fetchlog.Query) ([]fetchlog.Record, error) {
	if s.fetchLog == nil {
		return nil, ErrFetchLogDisabled
	}
	return s.fetchLog.List(ctx, q)
}

// ChartHTML renders the view's series as a standalone echarts page.
func (s *Service) ChartHTML(ctx context.Context, name string) ([]byte, string, error) {
	if s.charts == nil {
		return nil, "", ErrChartsDisabled
	}
	vr, err := s.RenderView(ctx, name)
	if err != nil {
		return nil, "", err
	}
	html, err := s.ChartFor(vr)
	return html, vr.Warning, err
}

// ChartFor renders an already shaped view without fetching it again.
func (s *Service) ChartFor(vr ViewRender) ([]byte, error) {
	if s.charts == nil {
		return nil, ErrChartsDisabled
	}
	return s.charts.HTML(vr.Title, vr.Series)
}

// ChartPNG renders the view's series through headless Chrome.
func (s *Service) ChartPNG(ctx context.Context, name string) ([]byte, string, error) {
	if s.charts == nil {
		return nil, "", ErrChartsDisabled
	}
	vr, err := s.RenderView(ctx, name)
	if err != nil {
		return nil, "", err
	}
	png, err := s.charts.RenderPNG(ctx, vr.Title, vr.Series, s.pngTimeout)
	return png, vr.Warning, err
}
