package config

import "strings"

// Config 是 tradedesk 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	API      APIConfig      `toml:"api"`
	Display  DisplayConfig  `toml:"display"`
	Cache    CacheConfig    `toml:"cache"`
	Views    ViewsConfig    `toml:"views"`
	Store    StoreConfig    `toml:"store"`
	Recorder RecorderConfig `toml:"recorder"`
	Chart    ChartConfig    `toml:"chart"`
}

type AppConfig struct {
	Env            string `toml:"env"`
	LogLevel       string `toml:"log_level"`
	HTTPAddr       string `toml:"http_addr"`
	LogPath        string `toml:"log_path"`
	PayloadLogPath string `toml:"payload_log_path"`
	DumpPayload    bool   `toml:"dump_payload"`
}

// APIConfig 描述远端账户数据服务的访问方式。
// Token/Username 为空时不发送任何认证头。
type APIConfig struct {
	BaseURL                string `toml:"base_url"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	Token                  string `toml:"token"`
	Username               string `toml:"username"`
	Password               string `toml:"password"`
	InsecureSkipVerify     bool   `toml:"insecure_skip_verify"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

// DisplayConfig 控制时间与金额的展示格式。
type DisplayConfig struct {
	ZoneName         string `toml:"zone_name"`
	UTCOffsetMinutes int    `toml:"utc_offset_minutes"`
	TimeLayout       string `toml:"time_layout"`
	Currency         string `toml:"currency"`
}

// CacheConfig 控制按 endpoint 的短时缓存，ttl_seconds=0 表示每次渲染都重新拉取。
type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

type ViewsConfig struct {
	CatalogPath string `toml:"catalog_path"`
}

// StoreConfig 指定本地 sqlite 文件；retention_days=0 表示永久保留。
type StoreConfig struct {
	SnapshotPath  string `toml:"snapshot_path"`
	FetchLogPath  string `toml:"fetch_log_path"`
	RetentionDays int    `toml:"retention_days"`
}

// RecorderConfig 控制账户快照的定时记录。
type RecorderConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

type ChartConfig struct {
	Theme                  string `toml:"theme"`
	WidthPx                int    `toml:"width_px"`
	HeightPx               int    `toml:"height_px"`
	SnapshotTimeoutSeconds int    `toml:"snapshot_timeout_seconds"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
