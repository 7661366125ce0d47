// Package dataprovider defines the optional collaborator that augments resolved
// props with backend data and lists crawlable content, plus HTTP and static
// implementations.
package dataprovider

import (
	"context"
	"time"

	"github.com/zjrosen/intentui/internal/domain/schema"
)

// IntentDataRequest is what the resolver hands to the provider after validation.
type IntentDataRequest struct {
	Intent     string         `json:"intent"`
	Component  string         `json:"component"`
	Parameters map[string]any `json:"parameters"`
	// Context is caller supplied request context, passed through untouched.
	Context map[string]any `json:"context,omitempty"`
}

// DataProvider returns fields to merge into props. Supplied parameters always win
// over returned fields with the same key.
type DataProvider interface {
	ResolveIntentData(ctx context.Context, req IntentDataRequest) (map[string]any, error)
}

// DataProviderFunc adapts a function to DataProvider.
type DataProviderFunc func(ctx context.Context, req IntentDataRequest) (map[string]any, error)

// ResolveIntentData implements DataProvider.
func (f DataProviderFunc) ResolveIntentData(ctx context.Context, req IntentDataRequest) (map[string]any, error) {
	return f(ctx, req)
}

// CrawlerOptions selects a page of crawlable content.
type CrawlerOptions struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Intent string `json:"intent,omitempty"`
}

// Normalize clamps page and limit into range.
func (o CrawlerOptions) Normalize() CrawlerOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultCrawlerLimit
	}
	if o.Limit > MaxCrawlerLimit {
		o.Limit = MaxCrawlerLimit
	}
	return o
}

// Crawler page sizes.
const (
	DefaultCrawlerLimit = 50
	MaxCrawlerLimit     = 500
)

// ContentItem is one crawlable page.
type ContentItem struct {
	Intent     string         `json:"intent"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Title      string         `json:"title,omitempty"`
	URL        string         `json:"url,omitempty"`
}

// Pagination describes the returned page.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// CrawlerContent is a page of crawlable content.
type CrawlerContent struct {
	Contents    []ContentItem `json:"contents"`
	Pagination  Pagination    `json:"pagination"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// CrawlerProvider lists crawlable content. It is not part of the render path.
type CrawlerProvider interface {
	GetCrawlerContent(ctx context.Context, opts CrawlerOptions) (*CrawlerContent, error)
}

// Paginate slices items into the page selected by opts.
func Paginate(items []ContentItem, opts CrawlerOptions, lastUpdated time.Time) *CrawlerContent {
	opts = opts.Normalize()
	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return &CrawlerContent{
		Contents: append([]ContentItem{}, items[start:end]...),
		Pagination: Pagination{
			Page:    opts.Page,
			Limit:   opts.Limit,
			Total:   len(items),
			HasMore: end < len(items),
		},
		LastUpdated: lastUpdated,
	}
}

// Static serves fixed data per intent and a fixed content list.
type Static struct {
	Data        map[string]map[string]any
	Contents    []ContentItem
	LastUpdated time.Time
}

// ResolveIntentData returns a copy of the data registered for the intent.
func (s *Static) ResolveIntentData(_ context.Context, req IntentDataRequest) (map[string]any, error) {
	data, ok := s.Data[req.Intent]
	if !ok {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = schema.DeepCopy(v)
	}
	return out, nil
}

// GetCrawlerContent pages through the configured contents, optionally filtered by intent.
func (s *Static) GetCrawlerContent(_ context.Context, opts CrawlerOptions) (*CrawlerContent, error) {
	items := s.Contents
	if opts.Intent != "" {
		items = nil
		for _, item := range s.Contents {
			if item.Intent == opts.Intent {
				items = append(items, item)
			}
		}
	}
	return Paginate(items, opts, s.LastUpdated), nil
}
