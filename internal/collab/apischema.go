package collab

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/specforge/trdgraph/internal/state"
)

// OpenAPIDocument is the minimal subset of an OpenAPI 3.0 document
// generate_api_spec needs to emit: enough for a reviewer or code generator
// to act on without pulling in a full OpenAPI object model.
type OpenAPIDocument struct {
	OpenAPI string                 `json:"openapi"`
	Info    map[string]string      `json:"info"`
	Paths   map[string]PathItem    `json:"paths"`
}

// PathItem holds the operations defined for one path.
type PathItem map[string]Operation

// Operation describes one HTTP method on a path.
type Operation struct {
	Summary     string                     `json:"summary,omitempty"`
	RequestBody *jsonschema.Schema         `json:"requestBody,omitempty"`
	Responses   map[string]*jsonschema.Schema `json:"responses,omitempty"`
}

// shapeSchema wraps a free-text shape description into a JSON Schema
// object node using invopop/jsonschema's Reflector against a generic
// placeholder type, since inferred endpoints carry their shape as prose
// (parse_code has no static Go types to reflect against) rather than a
// concrete struct.
func shapeSchema(description string) *jsonschema.Schema {
	r := &jsonschema.Reflector{}
	schema := r.Reflect(&struct {
		Body map[string]interface{} `json:"body"`
	}{})
	schema.Description = description
	return schema
}

// BuildOpenAPISpec renders inferred endpoints into an OpenAPI document.
func BuildOpenAPISpec(projectName string, endpoints []state.InferredEndpoint) (string, error) {
	doc := OpenAPIDocument{
		OpenAPI: "3.0.3",
		Info: map[string]string{
			"title":   projectName,
			"version": "1.0.0",
		},
		Paths: make(map[string]PathItem),
	}

	for _, ep := range endpoints {
		item, ok := doc.Paths[ep.Path]
		if !ok {
			item = PathItem{}
		}
		item[methodKey(ep.Method)] = Operation{
			Summary:     fmt.Sprintf("Inferred from %s", ep.Source),
			RequestBody: shapeSchema(ep.RequestShape),
			Responses: map[string]*jsonschema.Schema{
				"200": shapeSchema(ep.ResponseShape),
			},
		}
		doc.Paths[ep.Path] = item
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal openapi document: %w", err)
	}
	return string(out), nil
}

func methodKey(method string) string {
	if method == "" {
		return "get"
	}
	return method
}
