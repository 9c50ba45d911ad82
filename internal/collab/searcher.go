package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/specforge/trdgraph/graph/tool"
)

// SearchResult is one hit returned by a Searcher.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher looks up candidate technologies/libraries for a tech gap. It is
// the interface research_technologies depends on; the concrete
// implementation below adapts tool.Tool (graph/tool.Tool) to it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// WebSearchTool implements tool.Tool against a hosted search API (e.g. a
// SearXNG instance, Brave Search, or any provider speaking a similar JSON
// contract). It doubles as a Searcher so research_technologies can either
// call it directly or hand it to a Completer as an LLM-invokable tool.
type WebSearchTool struct {
	Endpoint string
	APIKey   string
	client   *http.Client
}

var _ tool.Tool = (*WebSearchTool)(nil)
var _ Searcher = (*WebSearchTool)(nil)

// NewWebSearchTool constructs a WebSearchTool against endpoint (a search
// API base URL) using apiKey for bearer authentication.
func NewWebSearchTool(endpoint, apiKey string) *WebSearchTool {
	return &WebSearchTool{
		Endpoint: endpoint,
		APIKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Name implements tool.Tool.
func (w *WebSearchTool) Name() string { return "search_web" }

// Call implements tool.Tool, delegating to Search and flattening the result
// into the map[string]interface{} shape an LLM tool call expects.
func (w *WebSearchTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	query, _ := input["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("search_web: missing required %q input", "query")
	}
	limit := 5
	if n, ok := input["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}
	results, err := w.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(results))
	for i, r := range results {
		out[i] = map[string]interface{}{"title": r.Title, "url": r.URL, "snippet": r.Snippet}
	}
	return map[string]interface{}{"results": out}, nil
}

// Search implements Searcher against the configured search API.
func (w *WebSearchTool) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	reqURL := fmt.Sprintf("%s?q=%s&limit=%d", w.Endpoint, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if w.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.APIKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]SearchResult, len(payload.Results))
	for i, r := range payload.Results {
		out[i] = SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet}
	}
	return out, nil
}
