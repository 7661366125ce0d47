package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// SSRRequest is sent to a server rendering service.
type SSRRequest struct {
	Framework  catalog.Framework `json:"framework"`
	Component  string            `json:"component"`
	ModuleURL  string            `json:"moduleUrl"`
	ExportName string            `json:"exportName"`
	Props      map[string]any    `json:"props"`
}

// SSRClient renders a component to markup out of process.
type SSRClient interface {
	Render(ctx context.Context, req SSRRequest) (string, error)
}

// SSRFunc adapts a function to SSRClient.
type SSRFunc func(ctx context.Context, req SSRRequest) (string, error)

// Render calls f.
func (f SSRFunc) Render(ctx context.Context, req SSRRequest) (string, error) {
	return f(ctx, req)
}

// HTTPSSR posts SSRRequest as JSON to an endpoint that answers {"html": "..."}.
type HTTPSSR struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSSR creates a client for a render sidecar.
func NewHTTPSSR(endpoint string, timeout time.Duration) *HTTPSSR {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPSSR{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Render implements SSRClient.
func (h *HTTPSSR) Render(ctx context.Context, req SSRRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode ssr request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ssr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ssr %s: %w", h.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ssr %s: status %d: %s", h.endpoint, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var out struct {
		HTML string `json:"html"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ssr response: %w", err)
	}
	return out.HTML, nil
}
