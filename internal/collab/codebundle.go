package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SourceFile is one file pulled from a UI code bundle for parse_code to
// inspect.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CodeBundleFetcher retrieves the files referenced by a session's
// code_bundle_ref. parse_code depends on this interface rather than a
// specific artifact-storage transport.
type CodeBundleFetcher interface {
	Fetch(ctx context.Context, codeBundleRef string) ([]SourceFile, error)
}

// HTTPCodeBundleFetcher fetches a code bundle's file listing from a JSON
// HTTP endpoint, "{baseURL}/bundles/{codeBundleRef}/files".
type HTTPCodeBundleFetcher struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPCodeBundleFetcher constructs an HTTPCodeBundleFetcher against baseURL.
func NewHTTPCodeBundleFetcher(baseURL string) *HTTPCodeBundleFetcher {
	return &HTTPCodeBundleFetcher{BaseURL: baseURL, client: http.DefaultClient}
}

// Fetch implements CodeBundleFetcher.
func (f *HTTPCodeBundleFetcher) Fetch(ctx context.Context, codeBundleRef string) ([]SourceFile, error) {
	reqURL := fmt.Sprintf("%s/bundles/%s/files", f.BaseURL, codeBundleRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build code bundle request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch code bundle: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("code bundle %s returned status %d", codeBundleRef, resp.StatusCode)
	}

	var files []SourceFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decode code bundle files: %w", err)
	}
	return files, nil
}
