package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tradedesk/internal/format"
	"tradedesk/internal/logger"
	webassets "tradedesk/internal/transport/web"

	"github.com/gin-gonic/gin"
)

// Server 提供看板 HTML 页面与 /api JSON 接口。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr      string
	Dashboard Dashboard
	Formatter *format.Formatter
}

// NewServer 构建看板 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Dashboard == nil {
		return nil, errors.New("dashboard http server requires a dashboard service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8501"
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.Default()
	}
	funcs := pageTemplateFuncs(cfg.Formatter)
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	// 先注册模板函数，再加载模板，否则自定义函数不可用
	router.SetFuncMap(funcs)
	if err := loadTemplates(router, funcs); err != nil {
		return nil, err
	}
	if err := serveStatic(router); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	pages := &pageHandler{dash: cfg.Dashboard}
	pages.Register(router)
	NewRouter(cfg.Dashboard).Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler 暴露底层 http.Handler，便于测试。
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

func loadTemplates(router *gin.Engine, funcs template.FuncMap) error {
	dirs := []string{
		"internal/transport/web/templates",
		"/app/internal/transport/web/templates",
		"web/templates",
		"/app/web/templates",
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		dirs = append(dirs, filepath.Join(dir, "web", "templates"))
	}
	for _, base := range dirs {
		stat, err := os.Stat(base)
		if err != nil || !stat.IsDir() {
			continue
		}
		files, _ := filepath.Glob(filepath.Join(base, "*.html"))
		if len(files) == 0 {
			continue
		}
		router.LoadHTMLFiles(files...)
		return nil
	}
	// 回退到内嵌模板
	const embeddedTplBase = "templates"
	fsys, err := fs.Sub(webassets.Templates, embeddedTplBase)
	if err != nil {
		return err
	}
	files, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no templates found in embedded FS")
	}
	tmpls := make([]string, len(files))
	for i, name := range files {
		tmpls[i] = embeddedTplBase + "/" + name
	}
	tmpl, err := template.New("dashboard").Funcs(funcs).ParseFS(webassets.Templates, tmpls...)
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	return nil
}

func serveStatic(router *gin.Engine) error {
	dirs := []string{
		"internal/transport/web/static",
		"/app/internal/transport/web/static",
		"web/static",
		"/app/web/static",
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "web", "static"))
	}
	for _, base := range dirs {
		stat, err := os.Stat(base)
		if err == nil && stat.IsDir() {
			router.Static("/static", base)
			return nil
		}
	}
	// 回退到内嵌静态资源
	sub, err := fs.Sub(webassets.Static, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(sub))
	router.GET("/static/*filepath", func(c *gin.Context) {
		c.Request.URL.Path = c.Param("filepath")
		fileServer.ServeHTTP(c.Writer, c.Request)
	})
	return nil
}

// requestLogger 以 DEBUG 级别记录每个请求。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("dashboard listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
