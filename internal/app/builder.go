package app

import (
	"context"
	"fmt"
	"time"

	"tradedesk/internal/chart"
	brcfg "tradedesk/internal/config"
	"tradedesk/internal/dashboard"
	"tradedesk/internal/fetch"
	"tradedesk/internal/format"
	"tradedesk/internal/gateway/accountapi"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/fetchlog"
	"tradedesk/internal/store/snapshot"
	dashboardhttp "tradedesk/internal/transport/http/dashboard"
	"tradedesk/internal/view"
)

// AppBuilder 按配置装配各组件；各 *Fn 字段可在测试中替换。
type AppBuilder struct {
	cfg *brcfg.Config

	getterFn        func(brcfg.APIConfig) (fetch.Getter, error)
	catalogFn       func(string) (*view.Catalog, error)
	snapshotStoreFn func(string) (*snapshot.Store, error)
	fetchLogFn      func(string) (*fetchlog.Store, error)
	httpServerFn    func(dashboardhttp.ServerConfig) (*dashboardhttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithGetter replaces the account API client, e.g. with a stub backend.
func WithGetter(fn func(brcfg.APIConfig) (fetch.Getter, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.getterFn = fn
		}
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:             cfg,
		getterFn:        newAccountClient,
		catalogFn:       view.NewCatalog,
		snapshotStoreFn: snapshot.NewStore,
		fetchLogFn:      fetchlog.NewStore,
		httpServerFn:    dashboardhttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func newAccountClient(cfg brcfg.APIConfig) (fetch.Getter, error) {
	client, err := accountapi.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 账户接口: %s", client.BaseURL())
	return client, nil
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	formatter := format.New(cfg.Display.Location(), cfg.Display.TimeLayout, cfg.Display.Currency)
	getter, err := b.getterFn(cfg.API)
	if err != nil {
		return nil, fmt.Errorf("build account api client: %w", err)
	}

	cache := fetch.NewCache(cfg.Cache.TTL())
	fetchOpts := []fetch.Option{fetch.WithCache(cache)}
	svcOpts := []dashboard.Option{dashboard.WithCache(cache)}
	retention := dashboard.NewRetention(cfg.Store.Retention(), dashboard.DefaultPruneInterval)
	summary := &StartupSummary{
		API:     apiSummary(cfg.API),
		Display: displaySummary(cfg.Display, formatter),
		Cache:   cacheSummary(cfg.Cache),
		Addr:    cfg.App.HTTPAddr,
	}

	if path := cfg.Store.FetchLogPath; path != "" {
		journal, err := b.fetchLogFn(path)
		if err != nil {
			return nil, fmt.Errorf("open fetch journal: %w", err)
		}
		closers = append(closers, journal.Close)
		fetchOpts = append(fetchOpts, fetch.WithJournal(journal))
		svcOpts = append(svcOpts, dashboard.WithFetchLog(journal))
		retention.Add("fetch_log", journal)
		summary.Stores = append(summary.Stores, "fetch_log="+path)
	}
	fetcher := fetch.New(getter, fetchOpts...)
	shaper := view.NewShaper(formatter)

	catalog, err := b.catalogFn(cfg.Views.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load view catalog: %w", err)
	}
	catalog.OnChange(func(s view.Snapshot) {
		logger.Infof("view catalog reloaded version=%d views=%d pages=%d", s.Version, len(s.Views), len(s.Pages))
	})
	summary.Catalog = catalogSummary(cfg.Views.CatalogPath, catalog.Snapshot())

	var snapStore *snapshot.Store
	if path := cfg.Store.SnapshotPath; path != "" {
		snapStore, err = b.snapshotStoreFn(path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		closers = append(closers, snapStore.Close)
		svcOpts = append(svcOpts, dashboard.WithSnapshots(snapStore))
		retention.Add("snapshots", snapStore)
		summary.Stores = append(summary.Stores, "snapshots="+path)
		if latest, ok, err := snapStore.Latest(ctx); err != nil {
			logger.Warnf("read latest snapshot failed: %v", err)
		} else if ok {
			summary.LatestSnapshot = latest.TakenAt.In(formatter.Location()).Format(cfg.Display.TimeLayout)
		}
	}

	renderer := chart.NewRenderer(chart.Options{
		Theme:    cfg.Chart.Theme,
		WidthPx:  cfg.Chart.WidthPx,
		HeightPx: cfg.Chart.HeightPx,
	})
	svcOpts = append(svcOpts, dashboard.WithCharts(renderer, time.Duration(cfg.Chart.SnapshotTimeoutSeconds)*time.Second))
	svc := dashboard.NewService(catalog, fetcher, shaper, svcOpts...)

	var recorder *dashboard.Recorder
	if cfg.Recorder.Enabled && snapStore != nil {
		recorder = dashboard.NewRecorder(catalog, fetcher, shaper, snapStore, cfg.Recorder.Interval())
		summary.Recorder = fmt.Sprintf("every %s", cfg.Recorder.Interval())
	}

	if retention.Enabled() {
		summary.Retention = fmt.Sprintf("%d days", cfg.Store.RetentionDays)
	}

	server, err := b.httpServerFn(dashboardhttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Dashboard: svc,
		Formatter: formatter,
	})
	if err != nil {
		return nil, fmt.Errorf("build dashboard http server: %w", err)
	}

	return &App{
		cfg:       cfg,
		server:    server,
		service:   svc,
		recorder:  recorder,
		retention: retention,
		catalog:   catalog,
		closers:   closers,
		Summary:   summary,
	}, nil
}
