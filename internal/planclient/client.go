// Package planclient is the HTTP client for the remote BioFlow plan service.
//
// Every endpoint has a typed request, a typed response and a single decoding
// step that fills named fallbacks, so callers never inspect raw JSON.
package planclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// Default client settings.
const (
	DefaultBaseURL       = "http://localhost:5000"
	DefaultTimeout       = 120 * time.Second
	DefaultRatePerSecond = 5
	DefaultBurst         = 5
	maxErrorBodyBytes    = 512
)

// Opts holds configuration for the Client.
type Opts struct {
	BaseURL       string        `validate:"required,url"`
	Timeout       time.Duration `validate:"gte=0"`
	RatePerSecond float64       `validate:"gte=0"`
	Burst         int           `validate:"gte=0"`
	HTTPClient    *http.Client  `validate:"-"`
}

// Option configures the Client.
type Option func(*Opts)

// WithBaseURL sets the service root, e.g. http://localhost:5000.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithRateLimit throttles outgoing requests; zero disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Opts) {
		o.RatePerSecond = perSecond
		o.Burst = burst
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ErrEmptyResponse is returned when an endpoint that must return data returns nothing.
var ErrEmptyResponse = errors.New("empty response body")

// Client talks to the plan service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	validate   *validator.Validate
}

// NewClient builds a Client from options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		BaseURL:       DefaultBaseURL,
		Timeout:       DefaultTimeout,
		RatePerSecond: DefaultRatePerSecond,
		Burst:         DefaultBurst,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		slog.Error("planclient NewClient invalid options", "error", err)
		return nil, fmt.Errorf("invalid plan client options: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	slog.Debug("planclient NewClient created", "base_url", cfg.BaseURL, "rate", cfg.RatePerSecond)
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		validate:   v,
	}, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) wait(ctx context.Context, endpoint string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", endpoint, err)
	}
	return nil
}

// postJSON validates and sends in, returning the raw response body.
func (c *Client) postJSON(ctx context.Context, endpoint string, in any) ([]byte, error) {
	if in != nil {
		if err := c.validate.Struct(in); err != nil {
			var invalid *validator.InvalidValidationError
			if !errors.As(err, &invalid) {
				slog.Warn("planclient request failed validation", "endpoint", endpoint, "error", err)
				return nil, fmt.Errorf("%s: invalid request: %w", endpoint, err)
			}
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, endpoint, req)
}

func (c *Client) do(ctx context.Context, endpoint string, req *http.Request) ([]byte, error) {
	if err := c.wait(ctx, endpoint); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("planclient request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", endpoint, err)
	}
	if err := checkStatus(endpoint, resp.StatusCode, data); err != nil {
		slog.Error("planclient request rejected", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, err
	}
	slog.Debug("planclient request succeeded", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

func checkStatus(endpoint string, code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes]
	}
	return &StatusError{Endpoint: endpoint, StatusCode: code, Body: text}
}
