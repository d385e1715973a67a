// Package fetch is the single boundary between the dashboard and the account
// backend: every failure stops here and becomes a user-visible warning.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradedesk/internal/gateway/accountapi"
	"tradedesk/internal/logger"
)

var ErrInvalidJSON = errors.New("response is not valid JSON")

// Getter is satisfied by *accountapi.Client.
type Getter interface {
	Get(ctx context.Context, endpoint string) (*accountapi.Response, error)
}

// Journal records every fetch attempt. Implementations must not block for long.
type Journal interface {
	RecordFetch(ctx context.Context, entry Entry) error
}

// Entry is one journal line.
type Entry struct {
	Endpoint   string
	OK         bool
	Cached     bool
	Status     int
	DurationMS int64
	Warning    string
	At         time.Time
}

// Result is the outcome of one Fetch. A failed fetch has a nil Body and a
// non-empty Warning.
type Result struct {
	Endpoint  string
	Body      json.RawMessage
	Status    int
	Warning   string
	Err       error
	Cached    bool
	FetchedAt time.Time
	Duration  time.Duration
}

func (r Result) OK() bool { return r.Err == nil && r.Body != nil }

// Decode returns the generic decoded body; numbers stay json.Number.
func (r Result) Decode() (any, error) {
	if !r.OK() {
		return nil, r.Err
	}
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// JSON exposes the body for path queries.
func (r Result) JSON() gjson.Result {
	if !r.OK() {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

type Option func(*Fetcher)

func WithCache(c *Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

func WithJournal(j Journal) Option {
	return func(f *Fetcher) { f.journal = j }
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

type Fetcher struct {
	getter  Getter
	cache   *Cache
	journal Journal
	now     func() time.Time
}

func New(getter Getter, opts ...Option) *Fetcher {
	f := &Fetcher{getter: getter, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Cache returns the attached cache, possibly nil.
func (f *Fetcher) Cache() *Cache { return f.cache }

// Fetch retrieves one endpoint. It never returns an error: failures are
// reported through Result.Warning and logged.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) Result {
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")
	res := Result{Endpoint: endpoint, FetchedAt: f.now()}
	if endpoint == "" {
		return f.fail(ctx, res, accountapi.ErrEmptyEndpoint)
	}
	if cached, ok := f.cache.Get(endpoint); ok {
		cached.Cached = true
		f.record(ctx, cached)
		return cached
	}
	if f.getter == nil {
		return f.fail(ctx, res, fmt.Errorf("no account api configured"))
	}
	resp, err := f.getter.Get(ctx, endpoint)
	if err != nil {
		var statusErr *accountapi.StatusError
		if errors.As(err, &statusErr) {
			res.Status = statusErr.Code
		}
		return f.fail(ctx, res, err)
	}
	res.Status = resp.Status
	res.Duration = resp.Duration
	body := bytes.TrimSpace(resp.Body)
	if !gjson.ValidBytes(body) {
		return f.fail(ctx, res, fmt.Errorf("%s: %w", endpoint, ErrInvalidJSON))
	}
	res.Body = json.RawMessage(body)
	f.cache.Set(endpoint, res)
	f.record(ctx, res)
	logger.Debugf("fetch %s ok status=%d bytes=%d dur=%s", endpoint, res.Status, len(body), res.Duration)
	return res
}

func (f *Fetcher) fail(ctx context.Context, res Result, err error) Result {
	res.Err = err
	res.Body = nil
	res.Warning = fmt.Sprintf("Error fetching data: %v", err)
	logger.Warnf("fetch %s failed: %v", res.Endpoint, err)
	f.record(ctx, res)
	return res
}

func (f *Fetcher) record(ctx context.Context, res Result) {
	if f.journal == nil {
		return
	}
	entry := Entry{
		Endpoint:   res.Endpoint,
		OK:         res.OK(),
		Cached:     res.Cached,
		Status:     res.Status,
		DurationMS: res.Duration.Milliseconds(),
		Warning:    res.Warning,
		At:         f.now(),
	}
	if err := f.journal.RecordFetch(ctx, entry); err != nil {
		logger.Debugf("fetch journal write failed endpoint=%s: %v", res.Endpoint, err)
	}
}
