// Package accountapi talks to the remote trading-account backend over HTTP GET.
package accountapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	brconfig "tradedesk/internal/config"
	"tradedesk/internal/logger"
	"tradedesk/internal/pkg/circuit"
	"tradedesk/internal/pkg/text"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 32 << 20
	errorBodyBytes = 4096
	maxErrorText   = 200
)

var (
	ErrEmptyEndpoint = errors.New("endpoint name required")
	ErrCircuitOpen   = errors.New("account api temporarily disabled after repeated failures")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
	Status   string
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("account api %s returned %s", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("account api %s returned %s: %s", e.Endpoint, e.Status, text.Truncate(e.Body, maxErrorText))
}

// Response is a successful GET.
type Response struct {
	Endpoint string
	Status   int
	Body     []byte
	Duration time.Duration
}

// Client wraps the account backend REST interactions.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	username   string
	password   string
	token      string
	breaker    *circuit.Breaker
}

// NewClient constructs a client from configuration.
func NewClient(cfg brconfig.APIConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("api.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api.base_url failed: %w", err)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}
	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		username: strings.TrimSpace(cfg.Username),
		password: strings.TrimSpace(cfg.Password),
		token:    strings.TrimSpace(cfg.Token),
		breaker:  circuit.New("account-api", cfg.BreakerThreshold, cfg.BreakerCooldown()),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// Get issues one GET against {base}/{endpoint}. Any non-2xx status or transport
// failure is an error; the body is returned untouched.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("account api client not initialized")
	}
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrCircuitOpen)
	}
	resp, err := c.doGet(ctx, endpoint)
	if err != nil {
		var statusErr *StatusError
		// 4xx 是请求本身的问题，不计入熔断
		if !errors.As(err, &statusErr) || statusErr.Code >= 500 {
			c.breaker.RecordFailure()
		}
		return nil, err
	}
	c.breaker.RecordSuccess()
	return resp, nil
}

func (c *Client) doGet(ctx context.Context, endpoint string) (*Response, error) {
	target, err := c.resolveEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call account api %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		logger.LogPayload(endpoint, resp.StatusCode, data)
		return nil, &StatusError{
			Endpoint: endpoint,
			Code:     resp.StatusCode,
			Status:   resp.Status,
			Body:     strings.TrimSpace(string(data)),
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read account api %s response failed: %w", endpoint, err)
	}
	logger.LogPayload(endpoint, resp.StatusCode, body)
	return &Response{
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Body:     body,
		Duration: time.Since(start),
	}, nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("account api base url not set")
	}
	trimmed := strings.TrimSpace(path)
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}
