package chart

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"tradedesk/internal/view"
)

const defaultSnapshotTimeout = 20 * time.Second

// ErrHeadlessUnavailable means no headless Chrome could be started.
var ErrHeadlessUnavailable = errors.New("headless chrome unavailable")

const headlessProbeTimeout = 30 * time.Second

var (
	headlessOnce  sync.Once
	headlessErr   error
	headlessProbe = func(ctx context.Context) error {
		parent, cancel := chromedp.NewContext(ctx)
		defer cancel()
		return chromedp.Run(parent)
	}
)

// EnsureHeadlessAvailable reports whether a headless Chrome can be started.
// The probe runs once per process on its own background context.
func EnsureHeadlessAvailable() error {
	headlessOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), headlessProbeTimeout)
		defer cancel()
		headlessErr = headlessProbe(ctx)
	})
	return headlessErr
}

// RenderPNG renders the series page in headless Chrome and returns a
// screenshot. timeout <= 0 uses 20s.
func (r *Renderer) RenderPNG(ctx context.Context, title string, series []view.Series, timeout time.Duration) ([]byte, error) {
	if err := EnsureHeadlessAvailable(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeadlessUnavailable, err)
	}
	html, err := r.HTML(title, series)
	if err != nil {
		return nil, err
	}
	height := r.cfg.HeightPx * countCharts(series)
	if height < 520 {
		height = 520
	}
	return renderHTMLToPNG(ctx, html, r.cfg.WidthPx, height, timeout)
}

func countCharts(series []view.Series) int {
	n := 0
	for _, s := range series {
		if len(s.Points) > 0 {
			n++
		}
	}
	return n
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int, timeout time.Duration) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, timeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
