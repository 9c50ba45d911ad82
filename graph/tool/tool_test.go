package tool

import (
	"context"
	"errors"
	"testing"
)

func TestTool_InterfaceContract(t *testing.T) {
	var _ Tool = (*mockTool)(nil)
}

// mockTool is a minimal Tool implementation for testing.
type mockTool struct {
	name   string
	called bool
	input  map[string]interface{}
	output map[string]interface{}
	err    error
}

func (m *mockTool) Name() string { return m.name }

func (m *mockTool) Call(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	m.called = true
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func TestTool_Call_Success(t *testing.T) {
	tool := &mockTool{name: "search_web", output: map[string]interface{}{"results": []string{"a", "b"}}}

	result, err := tool.Call(context.Background(), map[string]interface{}{"query": "test"})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if !tool.called || tool.input["query"] != "test" {
		t.Errorf("tool not invoked with expected input: %+v", tool.input)
	}
	results, ok := result["results"].([]string)
	if !ok || len(results) != 2 {
		t.Errorf("Call() results = %v, want 2-element slice", result["results"])
	}
}

func TestTool_Call_Error(t *testing.T) {
	expectedErr := errors.New("tool execution failed")
	tool := &mockTool{name: "failing-tool", err: expectedErr}

	result, err := tool.Call(context.Background(), nil)
	if !errors.Is(err, expectedErr) {
		t.Errorf("Call() error = %v, want %v", err, expectedErr)
	}
	if result != nil {
		t.Errorf("Call() result = %v, want nil", result)
	}
}

func TestTool_ConcurrentCalls(t *testing.T) {
	tool := &mockTool{name: "concurrent", output: map[string]interface{}{"status": "success"}}

	const numGoroutines = 10
	errChan := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, err := tool.Call(context.Background(), map[string]interface{}{"id": id})
			errChan <- err
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent call %d failed: %v", i, err)
		}
	}
}
