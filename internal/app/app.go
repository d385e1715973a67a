package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	brcfg "tradedesk/internal/config"
	"tradedesk/internal/dashboard"
	"tradedesk/internal/logger"
	dashboardhttp "tradedesk/internal/transport/http/dashboard"
	"tradedesk/internal/view"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动看板与快照记录。
type App struct {
	cfg       *brcfg.Config
	server    *dashboardhttp.Server
	service   *dashboard.Service
	recorder  *dashboard.Recorder
	retention *dashboard.Retention
	catalog   *view.Catalog
	closers   []func() error
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务、快照记录与过期清理，直到 ctx 结束或任一任务失败。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("dashboard http server not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	if a.catalog != nil {
		if err := a.catalog.Watch(); err != nil {
			logger.Warnf("view catalog watch disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("dashboard http server error: %w", err)
		}
		return nil
	})
	if a.recorder != nil {
		group.Go(func() error {
			return a.recorder.Run(ctx)
		})
	}
	if a.retention.Enabled() {
		group.Go(func() error {
			return a.retention.Run(ctx)
		})
	}
	return group.Wait()
}

// Close 释放存储句柄，可重复调用。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Service exposes the dashboard service (for tests and tooling).
func (a *App) Service() *dashboard.Service {
	if a == nil {
		return nil
	}
	return a.service
}

// Handler exposes the HTTP handler without starting a listener.
func (a *App) Handler() http.Handler {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Handler()
}
