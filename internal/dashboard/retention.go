package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradedesk/internal/logger"
)

// DefaultPruneInterval is how often Retention sweeps its stores.
const DefaultPruneInterval = time.Hour

// Pruner is satisfied by *snapshot.Store and *fetchlog.Store.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type namedPruner struct {
	name string
	p    Pruner
}

// Retention deletes rows older than maxAge from the local stores.
type Retention struct {
	maxAge   time.Duration
	interval time.Duration
	stores   []namedPruner
	now      func() time.Time
}

func NewRetention(maxAge, interval time.Duration) *Retention {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	return &Retention{maxAge: maxAge, interval: interval, now: time.Now}
}

// Add registers a store; nil stores are ignored.
func (r *Retention) Add(name string, p Pruner) {
	if p == nil {
		return
	}
	r.stores = append(r.stores, namedPruner{name: name, p: p})
}

// Enabled reports whether Run has anything to do.
func (r *Retention) Enabled() bool {
	return r != nil && r.maxAge > 0 && len(r.stores) > 0
}

// PruneOnce sweeps every store once and returns the total rows removed.
// One failing store does not stop the others.
func (r *Retention) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	var total int64
	var errs []error
	for _, s := range r.stores {
		n, err := s.p.Prune(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("prune %s: %w", s.name, err))
			continue
		}
		total += n
		if n > 0 {
			logger.Infof("retention pruned %d rows from %s older than %s", n, s.name, cutoff.Format(time.RFC3339))
		}
	}
	return total, errors.Join(errs...)
}

// Run sweeps immediately and then on every tick until ctx ends.
func (r *Retention) Run(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	logger.Infof("retention started max_age=%s interval=%s stores=%d", r.maxAge, r.interval, len(r.stores))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.PruneOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("retention: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
