package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const parseComponentPrompt = `Read this UI component source file and extract its shape. Respond with
JSON only: {"name":"...","props_schema":"...","state_vars":["..."],"api_calls":["..."],
"event_handlers":["..."],"imports":["..."]}. If the file has no component to extract, respond with
{"name":""}.`

// ParseCode extracts component records from the session's UI code bundle,
// if one was supplied (progress target 55%). Sessions without a code
// bundle skip straight through with current_stage = code_analysis_skipped.
type ParseCode struct {
	Fetcher   collab.CodeBundleFetcher
	Completer collab.Completer
}

// NewParseCode constructs a ParseCode node.
func NewParseCode(fetcher collab.CodeBundleFetcher, completer collab.Completer) *ParseCode {
	return &ParseCode{Fetcher: fetcher, Completer: completer}
}

// Run implements sgraph.Node[state.Session].
func (n *ParseCode) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	if s.CodeBundleRef == nil {
		return cont(state.Session{
			CurrentStage:       state.StageCodeAnalysisSkipped,
			ProgressPercentage: 55,
		})
	}

	files, err := n.Fetcher.Fetch(ctx, *s.CodeBundleRef)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: fetch code bundle: %w", ErrExternalServiceError, err))
	}

	var components []state.ParsedComponent
	var parseErrors []state.ErrorRecord
	for _, f := range files {
		comp, err := n.parseFile(ctx, f)
		if err != nil {
			parseErrors = append(parseErrors, recordError("parse_code", ErrExternalServiceError, fmt.Sprintf("skip %s: %v", f.Path, err), true))
			continue
		}
		if comp.Name == "" {
			continue
		}
		comp.FilePath = f.Path
		components = append(components, comp)
	}

	return cont(state.Session{
		ParsedComponents:   components,
		Errors:             parseErrors,
		CurrentStage:       state.StageParseCode,
		ProgressPercentage: 55,
	})
}

func (n *ParseCode) parseFile(ctx context.Context, f collab.SourceFile) (state.ParsedComponent, error) {
	out, err := n.Completer.Complete(ctx, parseComponentPrompt, f.Content)
	if err != nil {
		return state.ParsedComponent{}, err
	}
	var comp state.ParsedComponent
	if err := decodeJSON(out, &comp); err != nil {
		return state.ParsedComponent{}, err
	}
	return comp, nil
}
