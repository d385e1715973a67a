// Package snapshot archives periodic account summaries in SQLite via gorm.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultListLimit = 500

type accountSnapshotModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TakenAt       int64          `gorm:"column:taken_at;index"`
	Balance       *float64       `gorm:"column:balance"`
	UnrealizedPNL *float64       `gorm:"column:unrealized_pnl"`
	Metrics       datatypes.JSON `gorm:"column:metrics_json"`
	Raw           datatypes.JSON `gorm:"column:raw_json"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (accountSnapshotModel) TableName() string { return "account_snapshots" }

// Record is one archived account summary. Metrics holds every numeric
// field of the summary by name; Raw is the body exactly as fetched.
type Record struct {
	ID            int64              `json:"id"`
	TakenAt       time.Time          `json:"taken_at"`
	Balance       *float64           `json:"balance,omitempty"`
	UnrealizedPNL *float64           `json:"unrealized_pnl,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	Raw           json.RawMessage    `json:"raw,omitempty"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot store: path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&accountSnapshotModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts rec and returns it with its assigned ID.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	if s == nil || s.db == nil {
		return rec, fmt.Errorf("snapshot store not initialized")
	}
	if rec.TakenAt.IsZero() {
		rec.TakenAt = time.Now()
	}
	model := accountSnapshotModel{
		TakenAt:       rec.TakenAt.UnixMilli(),
		Balance:       rec.Balance,
		UnrealizedPNL: rec.UnrealizedPNL,
		CreatedAtUnix: time.Now().Unix(),
	}
	if len(rec.Metrics) > 0 {
		raw, err := json.Marshal(rec.Metrics)
		if err != nil {
			return rec, err
		}
		model.Metrics = datatypes.JSON(raw)
	}
	if len(rec.Raw) > 0 {
		model.Raw = datatypes.JSON(append([]byte(nil), rec.Raw...))
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return rec, fmt.Errorf("save snapshot: %w", err)
	}
	rec.ID = model.ID
	return rec, nil
}

// List returns snapshots taken at or after since, oldest first, keeping
// the newest limit rows. limit <= 0 uses 500.
func (s *Store) List(ctx context.Context, since time.Time, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	q := s.db.WithContext(ctx).Model(&accountSnapshotModel{})
	if !since.IsZero() {
		q = q.Where("taken_at >= ?", since.UnixMilli())
	}
	var rows []accountSnapshotModel
	if err := q.Order("taken_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, fromModel(rows[i]))
	}
	return out, nil
}

// Latest returns the newest snapshot, or false when none exists.
func (s *Store) Latest(ctx context.Context) (Record, bool, error) {
	if s == nil || s.db == nil {
		return Record{}, false, nil
	}
	var rows []accountSnapshotModel
	if err := s.db.WithContext(ctx).Order("taken_at DESC").Order("id DESC").Limit(1).Find(&rows).Error; err != nil {
		return Record{}, false, err
	}
	if len(rows) == 0 {
		return Record{}, false, nil
	}
	return fromModel(rows[0]), true, nil
}

// Prune deletes snapshots older than before and reports how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("taken_at < ?", before.UnixMilli()).Delete(&accountSnapshotModel{})
	return res.RowsAffected, res.Error
}

func fromModel(m accountSnapshotModel) Record {
	rec := Record{
		ID:            m.ID,
		TakenAt:       time.UnixMilli(m.TakenAt),
		Balance:       m.Balance,
		UnrealizedPNL: m.UnrealizedPNL,
	}
	if len(m.Metrics) > 0 {
		_ = json.Unmarshal(m.Metrics, &rec.Metrics)
	}
	if len(m.Raw) > 0 {
		rec.Raw = json.RawMessage(m.Raw)
	}
	return rec
}
