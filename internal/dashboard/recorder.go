package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradedesk/internal/gateway/accountapi"
	"tradedesk/internal/logger"
	"tradedesk/internal/store/snapshot"
	"tradedesk/internal/view"
)

// Recorder polls the account summary and archives it.
type Recorder struct {
	catalog  Catalog
	fetcher  Fetcher
	shaper   *view.Shaper
	store    SnapshotStore
	interval time.Duration
	now      func() time.Time
}

func NewRecorder(catalog Catalog, fetcher Fetcher, shaper *view.Shaper, store SnapshotStore, interval time.Duration) *Recorder {
	if shaper == nil {
		shaper = view.NewShaper(nil)
	}
	return &Recorder{
		catalog:  catalog,
		fetcher:  fetcher,
		shaper:   shaper,
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Run records once immediately and then on every tick until ctx ends.
// A failed round is logged and does not stop the loop.
func (r *Recorder) Run(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	if r.interval <= 0 {
		return fmt.Errorf("recorder interval must be positive")
	}
	logger.Infof("snapshot recorder started interval=%s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RecordOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("snapshot recorder: %v", err)
		}
		select {
		case <-ctx.Done():
			logger.Infof("snapshot recorder stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RecordOnce fetches the account summary and stores its numeric metrics
// alongside the raw body.
func (r *Recorder) RecordOnce(ctx context.Context) (snapshot.Record, error) {
	def, ok := r.catalog.View(accountapi.EndpointAccountSummary)
	if !ok {
		return snapshot.Record{}, fmt.Errorf("%w: %s", view.ErrUnknownView, accountapi.EndpointAccountSummary)
	}
	res := r.fetcher.Fetch(ctx, def.Endpoint)
	if !res.OK() {
		return snapshot.Record{}, errors.New(res.Warning)
	}
	shaped, err := r.shaper.Shape(def, res.Body)
	if err != nil {
		return snapshot.Record{}, err
	}
	if shaped.Empty {
		return snapshot.Record{}, fmt.Errorf("account summary is empty")
	}
	rec := snapshot.Record{
		TakenAt: r.now(),
		Metrics: make(map[string]float64),
		Raw:     append([]byte(nil), res.Body...),
	}
	for _, m := range shaped.Metrics {
		if m.Value == nil {
			continue
		}
		rec.Metrics[m.Key] = *m.Value
		switch m.Key {
		case "Balance":
			rec.Balance = floatPtr(*m.Value)
		case "Unrealized PNL":
			rec.UnrealizedPNL = floatPtr(*m.Value)
		}
	}
	saved, err := r.store.Save(ctx, rec)
	if err != nil {
		return snapshot.Record{}, err
	}
	logger.Debugf("snapshot recorded id=%d metrics=%d", saved.ID, len(saved.Metrics))
	return saved, nil
}

func floatPtr(v float64) *float64 { return &v }
