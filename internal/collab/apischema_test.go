package collab

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/specforge/trdgraph/internal/state"
)

func TestBuildOpenAPISpec_IncludesEveryEndpoint(t *testing.T) {
	endpoints := []state.InferredEndpoint{
		{Method: "GET", Path: "/users", ResponseShape: "list of users", Source: state.SourceComponentCode},
		{Method: "POST", Path: "/users", RequestShape: "new user payload", Source: state.SourceDesignDocs},
	}

	out, err := BuildOpenAPISpec("demo", endpoints)
	if err != nil {
		t.Fatalf("BuildOpenAPISpec: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Fatalf("expected openapi version 3.0.3, got %v", doc["openapi"])
	}
	if !strings.Contains(out, "/users") {
		t.Fatalf("expected /users path in output, got: %s", out)
	}
	if !strings.Contains(out, "new user payload") {
		t.Fatalf("expected request shape description embedded, got: %s", out)
	}
}

func TestBuildOpenAPISpec_DefaultsMissingMethodToGet(t *testing.T) {
	endpoints := []state.InferredEndpoint{{Path: "/health"}}
	out, err := BuildOpenAPISpec("demo", endpoints)
	if err != nil {
		t.Fatalf("BuildOpenAPISpec: %v", err)
	}
	if !strings.Contains(out, `"get"`) {
		t.Fatalf("expected default get method, got: %s", out)
	}
}
