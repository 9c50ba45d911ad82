package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const inferAPIFromComponentsPrompt = `Given these parsed UI components (their api_calls fields in
particular), deduce the backend API endpoints they imply. Respond with JSON only: {"endpoints":
[{"method":"...","path":"...","request_shape":"...","response_shape":"..."}]}`

const inferAPIFromDesignDocsPrompt = `Given these design docs, deduce the backend API endpoints a UI
built to this design would need. Respond with JSON only: {"endpoints": [{"method":"...","path":"...",
"request_shape":"...","response_shape":"..."}]}`

// InferAPI deduces the API surface from parsed components, falling back to
// design docs when no code bundle was parsed (progress target 60%).
type InferAPI struct {
	Completer collab.Completer
}

// NewInferAPI constructs an InferAPI node.
func NewInferAPI(completer collab.Completer) *InferAPI {
	return &InferAPI{Completer: completer}
}

type inferredEndpointsResponse struct {
	Endpoints []struct {
		Method        string `json:"method"`
		Path          string `json:"path"`
		RequestShape  string `json:"request_shape"`
		ResponseShape string `json:"response_shape"`
	} `json:"endpoints"`
}

// Run implements sgraph.Node[state.Session].
func (n *InferAPI) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	var (
		prompt string
		input  string
		source state.APIEndpointSource
	)
	if len(s.ParsedComponents) > 0 {
		prompt = inferAPIFromComponentsPrompt
		input = fmt.Sprintf("%+v", s.ParsedComponents)
		source = state.SourceComponentCode
	} else {
		prompt = inferAPIFromDesignDocsPrompt
		input = fmt.Sprintf("%v", s.DesignDocs)
		source = state.SourceDesignDocs
	}

	out, err := n.Completer.Complete(ctx, prompt, input)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: infer_api completion: %w", ErrExternalServiceError, err))
	}

	var resp inferredEndpointsResponse
	if err := decodeJSON(out, &resp); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: infer_api: %w", ErrExternalServiceError, err))
	}

	seen := make(map[string]bool, len(resp.Endpoints))
	endpoints := make([]state.InferredEndpoint, 0, len(resp.Endpoints))
	for _, e := range resp.Endpoints {
		method := e.Method
		if method == "" {
			method = "GET"
		}
		key := method + " " + e.Path
		if seen[key] {
			continue
		}
		seen[key] = true
		endpoints = append(endpoints, state.InferredEndpoint{
			Method:        method,
			Path:          e.Path,
			RequestShape:  e.RequestShape,
			ResponseShape: e.ResponseShape,
			Source:        source,
		})
	}

	return cont(state.Session{
		InferredAPISpec:    endpoints,
		CurrentStage:       state.StageInferAPI,
		ProgressPercentage: 60,
	})
}
