package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// UpstreamInputs is what load_inputs needs from the job that spawned this
// session: the PRD text, any design docs keyed by filename, and an
// optional reference to a UI code bundle for parse_code to inspect later.
type UpstreamInputs struct {
	PRDContent    string            `json:"prd_content"`
	DesignDocs    map[string]string `json:"design_docs"`
	CodeBundleRef string            `json:"code_bundle_ref,omitempty"`
}

// UpstreamLoader fetches a session's source artifacts from whatever system
// queued the job (a ticket tracker, a design-review tool, a CI artifact
// store). load_inputs depends on this interface rather than a concrete
// transport so the workflow is portable across upstream integrations.
type UpstreamLoader interface {
	Load(ctx context.Context, upstreamJobID string) (UpstreamInputs, error)
}

// HTTPUpstreamLoader fetches job inputs from a JSON HTTP endpoint,
// "{baseURL}/jobs/{upstreamJobID}/inputs".
type HTTPUpstreamLoader struct {
	BaseURL string
	client  *http.Client
}

// NewHTTPUpstreamLoader constructs an HTTPUpstreamLoader against baseURL.
func NewHTTPUpstreamLoader(baseURL string) *HTTPUpstreamLoader {
	return &HTTPUpstreamLoader{BaseURL: baseURL, client: http.DefaultClient}
}

// Load implements UpstreamLoader.
func (l *HTTPUpstreamLoader) Load(ctx context.Context, upstreamJobID string) (UpstreamInputs, error) {
	reqURL := fmt.Sprintf("%s/jobs/%s/inputs", l.BaseURL, upstreamJobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return UpstreamInputs{}, fmt.Errorf("build upstream request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return UpstreamInputs{}, fmt.Errorf("fetch upstream inputs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UpstreamInputs{}, fmt.Errorf("upstream job %s returned status %d", upstreamJobID, resp.StatusCode)
	}

	var inputs UpstreamInputs
	if err := json.NewDecoder(resp.Body).Decode(&inputs); err != nil {
		return UpstreamInputs{}, fmt.Errorf("decode upstream inputs: %w", err)
	}
	return inputs, nil
}
