package dashboardhttp

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"tradedesk/internal/dashboard"
	"tradedesk/internal/format"
	"tradedesk/internal/logger"
	"tradedesk/internal/view"

	"github.com/gin-gonic/gin"
)

func pageTemplateFuncs(f *format.Formatter) template.FuncMap {
	return template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return f.Timestamp(t.UnixMilli())
		},
		"signClass": signClass,
	}
}

func signClass(s format.Sign) string {
	switch s {
	case format.SignPositive:
		return "pnl-positive"
	case format.SignNegative:
		return "pnl-negative"
	default:
		return ""
	}
}

func hasCharts(series []view.Series) bool {
	for _, s := range series {
		if len(s.Points) > 0 {
			return true
		}
	}
	return false
}

type pageHandler struct {
	dash Dashboard
}

func (h *pageHandler) Register(router *gin.Engine) {
	router.GET("/", h.renderIndex)
	router.GET("/pages/:page", h.renderPage)
}

// renderIndex 跳转到菜单第一页。
func (h *pageHandler) renderIndex(c *gin.Context) {
	pages := h.dash.Pages()
	if len(pages) == 0 {
		c.String(http.StatusNotFound, "no pages configured")
		return
	}
	c.Redirect(http.StatusFound, "/pages/"+pages[0].Name)
}

func (h *pageHandler) renderPage(c *gin.Context) {
	name := c.Param("page")
	logger.Infof("[page] %s refresh ip=%s", name, c.ClientIP())
	render, err := h.dash.RenderPage(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.HTML(http.StatusOK, "page.html", gin.H{
		"Pages":  h.dash.Pages(),
		"Render": render,
		"Charts": h.embedCharts(render),
	})
}

// embedCharts 复用本次渲染结果生成图表页，避免 iframe 再次拉取接口。
func (h *pageHandler) embedCharts(render dashboard.PageRender) map[string]string {
	out := make(map[string]string)
	for _, vr := range render.Views {
		if vr.Empty || !hasCharts(vr.Series) {
			continue
		}
		html, err := h.dash.ChartFor(vr)
		if err != nil {
			if !errors.Is(err, dashboard.ErrChartsDisabled) {
				logger.Warnf("[page] %s chart %s failed: %v", render.Page, vr.View, err)
			}
			continue
		}
		out[vr.View] = string(html)
	}
	return out
}
