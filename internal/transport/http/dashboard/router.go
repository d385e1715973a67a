package dashboardhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradedesk/internal/chart"
	"tradedesk/internal/dashboard"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/fetchlog"
	"tradedesk/internal/store/snapshot"
	"tradedesk/internal/view"

	"github.com/gin-gonic/gin"
)

// Dashboard 由 *dashboard.Service 实现。
type Dashboard interface {
	Pages() []view.Page
	Views() []view.Definition
	RenderView(ctx context.Context, name string) (dashboard.ViewRender, error)
	RenderPage(ctx context.Context, name string) (dashboard.PageRender, error)
	RefreshCache(endpoint string) int
	Snapshots(ctx context.Context, since time.Time, limit int) ([]snapshot.Record, error)
	Fetches(ctx context.Context, q fetchlog.Query) ([]fetchlog.Record, error)
	ChartHTML(ctx context.Context, name string) ([]byte, string, error)
	ChartPNG(ctx context.Context, name string) ([]byte, string, error)
	ChartFor(vr dashboard.ViewRender) ([]byte, error)
}

var _ Dashboard = (*dashboard.Service)(nil)

// Router 暴露 /api 下的 JSON 接口。
type Router struct {
	dash Dashboard
}

func NewRouter(dash Dashboard) *Router {
	return &Router{dash: dash}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/pages", r.handlePages)
	group.GET("/pages/:page", r.handlePage)
	group.GET("/views", r.handleViews)
	group.GET("/views/:view", r.handleView)
	group.GET("/views/:view/chart", r.handleChartHTML)
	group.GET("/views/:view/chart.png", r.handleChartPNG)
	group.POST("/cache/refresh", r.handleCacheRefresh)
	group.GET("/snapshots", r.handleSnapshots)
	group.GET("/fetches", r.handleFetches)
}

type viewSummary struct {
	Name     string            `json:"name"`
	Title    string            `json:"title"`
	Endpoint string            `json:"endpoint"`
	Payload  view.PayloadKind  `json:"payload"`
	Columns  []view.Column     `json:"columns"`
	Series   []view.SeriesSpec `json:"series,omitempty"`
}

func (r *Router) handlePages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pages": r.dash.Pages()})
}

func (r *Router) handleViews(c *gin.Context) {
	defs := r.dash.Views()
	out := make([]viewSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, viewSummary{
			Name:     def.Name,
			Title:    def.Title,
			Endpoint: def.Endpoint,
			Payload:  def.Payload,
			Columns:  def.Columns,
			Series:   def.Series,
		})
	}
	c.JSON(http.StatusOK, gin.H{"views": out})
}

func (r *Router) handlePage(c *gin.Context) {
	page, err := r.dash.RenderPage(c.Request.Context(), c.Param("page"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (r *Router) handleView(c *gin.Context) {
	vr, err := r.dash.RenderView(c.Request.Context(), c.Param("view"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vr)
}

func (r *Router) handleChartHTML(c *gin.Context) {
	html, warning, err := r.dash.ChartHTML(c.Request.Context(), c.Param("view"))
	if err != nil {
		writeError(c, withWarning(err, warning))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (r *Router) handleChartPNG(c *gin.Context) {
	png, warning, err := r.dash.ChartPNG(c.Request.Context(), c.Param("view"))
	if err != nil {
		writeError(c, withWarning(err, warning))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (r *Router) handleCacheRefresh(c *gin.Context) {
	endpoint := strings.TrimSpace(c.Query("endpoint"))
	dropped := r.dash.RefreshCache(endpoint)
	if target := c.Query("redirect"); strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		c.Redirect(http.StatusSeeOther, target)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dropped": dropped, "endpoint": endpoint})
}

func (r *Router) handleSnapshots(c *gin.Context) {
	var since time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be epoch milliseconds"})
			return
		}
		since = time.UnixMilli(ms)
	}
	limit := queryLimit(c, 500, 5000)
	recs, err := r.dash.Snapshots(c.Request.Context(), since, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": recs})
}

func (r *Router) handleFetches(c *gin.Context) {
	failed, _ := strconv.ParseBool(c.DefaultQuery("failed", "false"))
	q := fetchlog.Query{
		Endpoint:   strings.TrimSpace(c.Query("endpoint")),
		FailedOnly: failed,
		Limit:      queryLimit(c, 100, 1000),
	}
	recs, err := r.dash.Fetches(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fetches": recs})
}

func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

type warnedError struct {
	err     error
	warning string
}

func (e warnedError) Error() string { return e.err.Error() }
func (e warnedError) Unwrap() error { return e.err }

func withWarning(err error, warning string) error {
	if warning == "" {
		return err
	}
	return warnedError{err: err, warning: warning}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, view.ErrUnknownView), errors.Is(err, view.ErrUnknownPage), errors.Is(err, chart.ErrNoSeries):
		status = http.StatusNotFound
	case errors.Is(err, dashboard.ErrSnapshotsOff), errors.Is(err, dashboard.ErrFetchLogDisabled),
		errors.Is(err, dashboard.ErrChartsDisabled), errors.Is(err, chart.ErrHeadlessUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	body := gin.H{"error": err.Error()}
	var we warnedError
	if errors.As(err, &we) {
		body["warning"] = we.warning
	}
	if status >= http.StatusInternalServerError {
		logger.Warnf("HTTP %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, body)
}
