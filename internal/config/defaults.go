package config

import "strings"

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":8501"
	defaultAPIBaseURL       = "http://127.0.0.1:5001"
	defaultAPITimeout       = 10
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30
	defaultZoneName         = "IST"
	defaultUTCOffsetMinutes = 330
	defaultTimeLayout       = "02 Jan 2006 03:04:05 PM"
	defaultCurrency         = "USDT"
	defaultRecorderInterval = 300
	defaultChartTheme       = "westeros"
	defaultChartWidth       = 1200
	defaultChartHeight      = 480
	defaultSnapshotTimeout  = 20
	defaultRetentionDays    = 30
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.API.applyDefaults(keys)
	c.Display.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Recorder.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (a *APIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	applyFieldDefaults(keys,
		stringFieldDefault("api.base_url", &a.BaseURL, defaultAPIBaseURL),
		positiveIntDefault("api.timeout_seconds", &a.TimeoutSeconds, defaultAPITimeout),
		intFieldDefault("api.breaker_threshold", &a.BreakerThreshold, defaultBreakerThreshold),
		positiveIntDefault("api.breaker_cooldown_seconds", &a.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	// timeout 必须有界，显式写 0 也回落到默认值
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = defaultAPITimeout
	}
}

func (d *DisplayConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("display.zone_name", &d.ZoneName, defaultZoneName),
		intFieldDefault("display.utc_offset_minutes", &d.UTCOffsetMinutes, defaultUTCOffsetMinutes),
		stringFieldDefault("display.time_layout", &d.TimeLayout, defaultTimeLayout),
		stringFieldDefault("display.currency", &d.Currency, defaultCurrency),
	)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	if c.TTLSeconds < 0 {
		c.TTLSeconds = 0
	}
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.SnapshotPath = strings.TrimSpace(s.SnapshotPath)
	s.FetchLogPath = strings.TrimSpace(s.FetchLogPath)
	applyFieldDefaults(keys,
		intFieldDefault("store.retention_days", &s.RetentionDays, defaultRetentionDays),
	)
}

func (r *RecorderConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveIntDefault("recorder.interval_seconds", &r.IntervalSeconds, defaultRecorderInterval),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("chart.theme", &c.Theme, defaultChartTheme),
		positiveIntDefault("chart.width_px", &c.WidthPx, defaultChartWidth),
		positiveIntDefault("chart.height_px", &c.HeightPx, defaultChartHeight),
		positiveIntDefault("chart.snapshot_timeout_seconds", &c.SnapshotTimeoutSeconds, defaultSnapshotTimeout),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// intFieldDefault 只在 key 未出现在配置中时生效，因此显式写 0 会被保留。
func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func positiveIntDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
