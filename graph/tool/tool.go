package tool

import "context"

// Tool defines the interface for executable tools that LLMs can invoke.
//
// research_technologies hands a gap's search query to a Tool-implementing
// collaborator (internal/collab.WebSearchTool) so the LLM can ground its
// recommendations in something other than its own training data.
//
// Implementations should:
//   - Validate input parameters.
//   - Respect context cancellation.
//   - Return structured output as map[string]interface{}.
//   - Be idempotent where possible.
//
// Example:
//
//	type WebSearchTool struct{ searcher collab.Searcher }
//
//	func (t *WebSearchTool) Name() string { return "search_web" }
//
//	func (t *WebSearchTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    query, ok := input["query"].(string)
//	    if !ok {
//	        return nil, errors.New("query parameter required")
//	    }
//	    results, err := t.searcher.Search(ctx, query, 5)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return map[string]interface{}{"results": results}, nil
//	}
type Tool interface {
	// Name returns the tool's unique identifier; must match the name in
	// the ToolSpec the LLM was given. Lowercase with underscores, e.g.
	// "search_web".
	Name() string

	// Call executes the tool with input shaped per the matching
	// ToolSpec.Schema, returning structured output the LLM can process.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
