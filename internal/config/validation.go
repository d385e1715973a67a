package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.API.validate(); err != nil {
		return err
	}
	if err := c.Display.validate(); err != nil {
		return err
	}
	if err := c.Recorder.validate(c.Store); err != nil {
		return err
	}
	if c.Store.RetentionDays < 0 {
		return fmt.Errorf("store.retention_days must be >= 0")
	}
	return nil
}

func (a *APIConfig) validate() error {
	raw := strings.TrimSpace(a.BaseURL)
	if raw == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("api.base_url invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url missing host")
	}
	if a.BreakerThreshold < 0 {
		return fmt.Errorf("api.breaker_threshold must be >= 0")
	}
	if strings.TrimSpace(a.Token) != "" && strings.TrimSpace(a.Username) != "" {
		return fmt.Errorf("api.token and api.username are mutually exclusive")
	}
	return nil
}

func (d *DisplayConfig) validate() error {
	// UTC-12:00 .. UTC+14:00
	if d.UTCOffsetMinutes < -12*60 || d.UTCOffsetMinutes > 14*60 {
		return fmt.Errorf("display.utc_offset_minutes out of range: %d", d.UTCOffsetMinutes)
	}
	probe := time.Date(2024, time.March, 9, 15, 4, 5, 0, time.UTC).Format(d.TimeLayout)
	if probe == d.TimeLayout {
		return fmt.Errorf("display.time_layout %q has no time directives", d.TimeLayout)
	}
	if d.Currency == "" {
		return fmt.Errorf("display.currency cannot be empty")
	}
	return nil
}

func (r *RecorderConfig) validate(store StoreConfig) error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(store.SnapshotPath) == "" {
		return fmt.Errorf("recorder.enabled requires store.snapshot_path")
	}
	if r.IntervalSeconds < 5 {
		return fmt.Errorf("recorder.interval_seconds must be >= 5")
	}
	return nil
}

// Location 返回展示用的固定时区。
func (d DisplayConfig) Location() *time.Location {
	return time.FixedZone(d.ZoneName, d.UTCOffsetMinutes*60)
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (a APIConfig) BreakerCooldown() time.Duration {
	return time.Duration(a.BreakerCooldownSeconds) * time.Second
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Retention 返回本地存储的保留时长，0 表示不清理。
func (s StoreConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

func (r RecorderConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}
