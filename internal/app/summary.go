package app

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	brcfg "tradedesk/internal/config"
	"tradedesk/internal/format"
	"tradedesk/internal/view"
)

// StartupSummary 汇总启动时的关键配置，打印到标准输出。
type StartupSummary struct {
	Addr     string
	API      string
	Display  string
	Cache    string
	Catalog  CatalogSummary
	Stores   []string
	Recorder string

	Retention      string
	LatestSnapshot string
}

type CatalogSummary struct {
	Source string
	Views  []string
	Pages  []string
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[服务 (SERVICE)]")
	fmt.Fprintf(w, "  监听地址: %s\n", orDash(s.Addr))
	fmt.Fprintf(w, "  账户接口: %s\n", orDash(s.API))
	fmt.Fprintf(w, "  展示格式: %s\n", orDash(s.Display))
	fmt.Fprintf(w, "  缓存策略: %s\n", orDash(s.Cache))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[视图目录 (VIEW CATALOG)]")
	fmt.Fprintf(w, "  来源: %s\n", orDash(s.Catalog.Source))
	fmt.Fprintf(w, "  视图(%d): %s\n", len(s.Catalog.Views), formatList(s.Catalog.Views))
	fmt.Fprintf(w, "  页面(%d): %s\n", len(s.Catalog.Pages), formatList(s.Catalog.Pages))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[存储与记录 (STORAGE)]")
	fmt.Fprintf(w, "  存储: %s\n", formatList(s.Stores))
	if s.Recorder == "" {
		fmt.Fprintln(w, "  快照记录: (未启用)")
	} else {
		fmt.Fprintf(w, "  快照记录: %s\n", s.Recorder)
	}
	if s.LatestSnapshot != "" {
		fmt.Fprintf(w, "  最近快照: %s\n", s.LatestSnapshot)
	}
	if s.Retention == "" {
		fmt.Fprintln(w, "  保留期限: (永久)")
	} else {
		fmt.Fprintf(w, "  保留期限: %s\n", s.Retention)
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func apiSummary(cfg brcfg.APIConfig) string {
	auth := "none"
	switch {
	case strings.TrimSpace(cfg.Token) != "":
		auth = "bearer"
	case strings.TrimSpace(cfg.Username) != "":
		auth = "basic"
	}
	return fmt.Sprintf("%s (timeout=%s, auth=%s)", cfg.BaseURL, cfg.Timeout(), auth)
}

func displaySummary(cfg brcfg.DisplayConfig, f *format.Formatter) string {
	return fmt.Sprintf("zone=%s offset=%+dm currency=%s", f.Location().String(), cfg.UTCOffsetMinutes, f.Currency())
}

func cacheSummary(cfg brcfg.CacheConfig) string {
	if cfg.TTLSeconds <= 0 {
		return "off"
	}
	return fmt.Sprintf("ttl=%s", cfg.TTL())
}

func catalogSummary(path string, snap view.Snapshot) CatalogSummary {
	views := make([]string, 0, len(snap.Views))
	for name := range snap.Views {
		views = append(views, name)
	}
	sort.Strings(views)
	pages := make([]string, 0, len(snap.Pages))
	for _, p := range snap.Pages {
		pages = append(pages, p.Name)
	}
	source := "builtin"
	if path != "" {
		source = "builtin + " + path
	}
	return CatalogSummary{Source: source, Views: views, Pages: pages}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
