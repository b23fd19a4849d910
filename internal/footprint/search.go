// Package footprint runs the external checks for a seller identifier:
// web-search footprint, site reachability, domain age and mail routing.
// Every check degrades to an Unknown signal instead of failing.
package footprint

import (
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

	"github.com/ppiankov/riskcheck/internal/cache"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/worker"
)

// ErrNotConfigured is returned by providers that lack credentials
var ErrNotConfigured = errors.New("search provider is not configured")

// SearchItem is one result. Snippets are analyzed but never returned to callers.
type SearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchResult is the provider's answer to one query
type SearchResult struct {
	Query string       `json:"query"`
	Total int          `json:"total"`
	Items []SearchItem `json:"items"`
}

// SearchProvider answers web-search queries
type SearchProvider interface {
	Search(ctx context.Context, query string) (*SearchResult, error)
}

// GoogleSearch queries the Google Programmable Search JSON API
type GoogleSearch struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	cx         string
	gl         string
	hl         string
	num        int
}

// NewGoogleSearch creates a client from cfg
func NewGoogleSearch(client *http.Client, cfg model.SearchConfig) *GoogleSearch {
	num := cfg.ResultsPerQuery
	if num < 1 {
		num = 1
	}
	if num > 10 {
		num = 10
	}
	return &GoogleSearch{
		httpClient: client,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		cx:         cfg.CX,
		gl:         cfg.GL,
		hl:         cfg.HL,
		num:        num,
	}
}

// Search runs one query
func (g *GoogleSearch) Search(ctx context.Context, query string) (*SearchResult, error) {
	if g.apiKey == "" || g.cx == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(g.num))
	if g.gl != "" {
		params.Set("gl", g.gl)
	}
	if g.hl != "" {
		params.Set("hl", g.hl)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var payload struct {
		SearchInformation struct {
			TotalResults string `json:"totalResults"`
		} `json:"searchInformation"`
		Items []SearchItem `json:"items"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if payload.Error != nil && payload.Error.Message != "" {
			return nil, fmt.Errorf("search API error (HTTP %d): %s", resp.StatusCode, payload.Error.Message)
		}
		return nil, fmt.Errorf("search API error (HTTP %d)", resp.StatusCode)
	}

	total, _ := strconv.Atoi(payload.SearchInformation.TotalResults)
	result := &SearchResult{Query: query, Total: total}
	for _, it := range payload.Items {
		result.Items = append(result.Items, SearchItem{
			Title:   truncate(it.Title, 200),
			Link:    truncate(it.Link, 500),
			Snippet: truncate(it.Snippet, 500),
		})
	}
	if result.Total < len(result.Items) {
		result.Total = len(result.Items)
	}
	return result, nil
}

// CachedSearch wraps a provider with a response cache and a rate limit.
// Failed searches are not cached.
type CachedSearch struct {
	provider SearchProvider
	cache    cache.Cache
	limiter  *worker.Limiter
	ttl      time.Duration
	cacheNS  string
}

// NewCachedSearch wraps provider. Country, language and result count are part
// of the cache key because they change answers for the same query.
func NewCachedSearch(provider SearchProvider, c cache.Cache, limiter *worker.Limiter, cfg model.SearchConfig) *CachedSearch {
	return &CachedSearch{
		provider: provider,
		cache:    c,
		limiter:  limiter,
		ttl:      cfg.CacheTTL,
		cacheNS:  fmt.Sprintf("search|%d|%s|%s", cfg.ResultsPerQuery, cfg.GL, cfg.HL),
	}
}

// Search returns a cached answer or asks the provider
func (c *CachedSearch) Search(ctx context.Context, query string) (*SearchResult, error) {
	key := cache.CacheKey(c.cacheNS, query)
	if data, ok := c.cache.Get(key); ok {
		var cached SearchResult
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "search"); err != nil {
			return nil, fmt.Errorf("search rate limit: %w", err)
		}
	}

	result, err := c.provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		_ = c.cache.Set(key, data, c.ttl)
	}
	return result, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
