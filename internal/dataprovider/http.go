package dataprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/zjrosen/intentui/internal/log"
)

// HTTPConfig configures the HTTP data provider.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	// MaxAttempts bounds retries of transient failures (network errors and 5xx).
	MaxAttempts uint
	Headers     map[string]string
}

// HTTP calls a backend service:
//
//	POST {base}/intent-data      body IntentDataRequest, response object
//	GET  {base}/crawler-content  ?page=&limit=&intent=, response CrawlerContent
type HTTP struct {
	base        *url.URL
	client      *http.Client
	maxAttempts uint
	headers     map[string]string
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("data provider responded %d", e.StatusCode)
	}
	return fmt.Sprintf("data provider responded %d: %s", e.StatusCode, e.Body)
}

// NewHTTP validates the base URL and builds the client.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("data provider url %q must be an absolute http(s) URL", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}
	return &HTTP{
		base:        base,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		headers:     cfg.Headers,
	}, nil
}

// ResolveIntentData implements DataProvider.
func (h *HTTP) ResolveIntentData(ctx context.Context, req IntentDataRequest) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode intent data request: %w", err)
	}
	var out map[string]any
	if err := h.do(ctx, http.MethodPost, h.endpoint("intent-data", nil), body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// GetCrawlerContent implements CrawlerProvider.
func (h *HTTP) GetCrawlerContent(ctx context.Context, opts CrawlerOptions) (*CrawlerContent, error) {
	opts = opts.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Intent != "" {
		q.Set("intent", opts.Intent)
	}
	var out CrawlerContent
	if err := h.do(ctx, http.MethodGet, h.endpoint("crawler-content", q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) endpoint(path string, q url.Values) string {
	u := *h.base
	u.Path = u.Path + "/" + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (h *HTTP) do(ctx context.Context, method, target string, body []byte, out any) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := h.once(ctx, method, target, body, out)
		if err == nil {
			return struct{}{}, nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return struct{}{}, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		log.Debug(log.CatProvider, "Data provider call failed, retrying", "url", target, "attempt", attempt, "error", err.Error())
		return struct{}{}, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(h.maxAttempts),
	)
	return err
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

func (h *HTTP) once(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return backoff.Permanent(fmt.Errorf("decode %s: %w", target, err))
	}
	return nil
}
