package dataprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTP_ResolveIntentData(t *testing.T) {
	var got IntentDataRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/intent-data", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"products": []any{"tv"}, "category": "ignored"})
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/api/", Headers: map[string]string{"X-Api-Key": "secret"}})
	require.NoError(t, err)

	data, err := p.ResolveIntentData(context.Background(), IntentDataRequest{
		Intent: "show_products", Component: "ProductGrid", Parameters: map[string]any{"category": "electronics"},
	})

	require.NoError(t, err)
	require.Equal(t, []any{"tv"}, data["products"])
	require.Equal(t, "show_products", got.Intent)
	require.Equal(t, "electronics", got.Parameters["category"])
}

func TestHTTP_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, MaxAttempts: 3})
	require.NoError(t, err)

	data, err := p.ResolveIntentData(context.Background(), IntentDataRequest{Intent: "x"})
	require.NoError(t, err)
	require.Equal(t, true, data["ok"])
	require.Equal(t, int32(3), calls.Load())
}

func TestHTTP_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown intent", http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, MaxAttempts: 5})
	require.NoError(t, err)

	_, err = p.ResolveIntentData(context.Background(), IntentDataRequest{Intent: "x"})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.StatusCode)
	require.Equal(t, "unknown intent", se.Body)
	require.Equal(t, int32(1), calls.Load())
}

func TestHTTP_GetCrawlerContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crawler-content", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"contents":[{"intent":"show_products","title":"TVs"}],"pagination":{"page":2,"limit":50,"total":51,"hasMore":false},"lastUpdated":"2026-01-02T03:04:05Z"}`))
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	content, err := p.GetCrawlerContent(context.Background(), CrawlerOptions{Page: 2})
	require.NoError(t, err)
	require.Len(t, content.Contents, 1)
	require.Equal(t, "TVs", content.Contents[0].Title)
	require.Equal(t, 51, content.Pagination.Total)
	require.Equal(t, 2026, content.LastUpdated.Year())
}

func TestNewHTTP_RejectsRelativeURL(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{BaseURL: "/relative"})
	require.Error(t, err)
}

func TestStatic_ResolveIntentDataReturnsCopy(t *testing.T) {
	s := &Static{Data: map[string]map[string]any{"show_products": {"items": []any{"a"}}}}

	data, err := s.ResolveIntentData(context.Background(), IntentDataRequest{Intent: "show_products"})
	require.NoError(t, err)
	data["items"].([]any)[0] = "changed"

	again, _ := s.ResolveIntentData(context.Background(), IntentDataRequest{Intent: "show_products"})
	require.Equal(t, []any{"a"}, again["items"])

	empty, err := s.ResolveIntentData(context.Background(), IntentDataRequest{Intent: "other"})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestStatic_GetCrawlerContentPaginates(t *testing.T) {
	now := time.Now()
	s := &Static{LastUpdated: now, Contents: []ContentItem{
		{Intent: "a", Title: "1"}, {Intent: "b", Title: "2"}, {Intent: "a", Title: "3"},
	}}

	page, err := s.GetCrawlerContent(context.Background(), CrawlerOptions{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Contents, 2)
	require.True(t, page.Pagination.HasMore)
	require.Equal(t, 3, page.Pagination.Total)

	filtered, err := s.GetCrawlerContent(context.Background(), CrawlerOptions{Intent: "a"})
	require.NoError(t, err)
	require.Len(t, filtered.Contents, 2)
	require.False(t, filtered.Pagination.HasMore)

	beyond, err := s.GetCrawlerContent(context.Background(), CrawlerOptions{Page: 9, Limit: 2})
	require.NoError(t, err)
	require.Empty(t, beyond.Contents)
}

func TestCrawlerOptions_Normalize(t *testing.T) {
	require.Equal(t, CrawlerOptions{Page: 1, Limit: DefaultCrawlerLimit}, CrawlerOptions{}.Normalize())
	require.Equal(t, MaxCrawlerLimit, CrawlerOptions{Limit: 10_000}.Normalize().Limit)
}

func TestDataProviderFunc(t *testing.T) {
	var p DataProvider = DataProviderFunc(func(_ context.Context, req IntentDataRequest) (map[string]any, error) {
		return map[string]any{"intent": req.Intent}, nil
	})
	data, err := p.ResolveIntentData(context.Background(), IntentDataRequest{Intent: "x"})
	require.NoError(t, err)
	require.Equal(t, "x", data["intent"])
}
