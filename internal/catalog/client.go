package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultMinInterval    = time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// ErrNotFound indicates the catalog has no record for a fingerprint. It is
// not a failure: the model simply is not known to the provider.
var ErrNotFound = errors.New("catalog has no record for fingerprint")

// RequestError wraps transport and server-side failures so callers can
// distinguish network trouble from a definitive not-found.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("catalog request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ModelInfo is the provider's description of the parent model.
type ModelInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	NSFW bool   `json:"nsfw"`
}

// ImageInfo is one preview image attached to a model version.
type ImageInfo struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ModelVersion is the enrichment record returned for a fingerprint lookup.
// Raw preserves the provider's full response body for opaque caching.
type ModelVersion struct {
	ID           int64       `json:"id"`
	ModelID      int64       `json:"modelId"`
	Name         string      `json:"name"`
	BaseModel    string      `json:"baseModel"`
	Model        ModelInfo   `json:"model"`
	TrainedWords []string    `json:"trainedWords"`
	Images       []ImageInfo `json:"images"`
	DownloadURL  string      `json:"downloadUrl"`

	Raw json.RawMessage `json:"-"`
}

// Fetcher is the lookup operation consumed by the scan orchestrator.
type Fetcher interface {
	Lookup(ctx context.Context, fingerprint string) (*ModelVersion, error)
}

// Client talks to the remote catalog over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	minInterval   time.Duration
	retryAttempts int
	retryBase     time.Duration
	retryMax      time.Duration
	sleeper       func(context.Context, time.Duration) error

	mu          sync.Mutex
	lastRequest time.Time
}

var _ Fetcher = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMinInterval sets the enforced minimum delay between consecutive
// requests.
func WithMinInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.minInterval = interval
		}
	}
}

// WithRetryAttempts overrides the transient-failure retry count.
func WithRetryAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.retryBase = base
		}
		if max > 0 {
			c.retryMax = max
		}
	}
}

// WithSleeper overrides how delays are slept (used in tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// New creates a catalog client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	client := &Client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(apiKey),
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		minInterval:   defaultMinInterval,
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBaseDelay,
		retryMax:      defaultRetryMaxDelay,
		sleeper:       sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Lookup fetches the enrichment record for a fingerprint. A 404 maps to
// ErrNotFound; transient failures are retried with capped exponential
// backoff and surface as *RequestError once attempts are exhausted.
func (c *Client) Lookup(ctx context.Context, fingerprint string) (*ModelVersion, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, errors.New("fingerprint must not be empty")
	}

	endpoint, err := url.Parse(c.baseURL + "/model-versions/by-hash/" + url.PathEscape(fingerprint))
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(c.retryBase, c.retryMax, attempt)
			if err := c.sleeper(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}

		version, err := c.doLookup(ctx, endpoint.String())
		if err == nil {
			return version, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doLookup(ctx context.Context, endpoint string) (*ModelVersion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RequestError{Err: fmt.Errorf("execute request (latency=%v): %w", latency, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status (latency=%v)", latency),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("read response: %w", err)}
	}

	var version ModelVersion
	if err := json.Unmarshal(body, &version); err != nil {
		return nil, &RequestError{Err: fmt.Errorf("decode catalog response: %w", err)}
	}
	version.Raw = body
	return &version, nil
}

// throttle enforces the minimum interval between consecutive requests. The
// interval is session-wide: the lock serializes all callers.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minInterval - time.Since(c.lastRequest)
	if !c.lastRequest.IsZero() && wait > 0 {
		c.mu.Unlock()
		if err := c.sleeper(ctx, wait); err != nil {
			return err
		}
		c.mu.Lock()
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
	return nil
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
