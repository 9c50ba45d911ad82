package nodes

import (
	"context"
	"sync"

	"github.com/specforge/trdgraph/internal/collab"
)

// stubCompleter returns queued responses in order, repeating the last one
// once exhausted, mirroring model.MockChatModel's call-history pattern.
type stubCompleter struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []string
	callIndex int
}

func (c *stubCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, userPrompt)
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Responses) == 0 {
		return "{}", nil
	}
	idx := c.callIndex
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	c.callIndex++
	_ = systemPrompt
	return c.Responses[idx], nil
}

type stubUpstreamLoader struct {
	inputs collab.UpstreamInputs
	err    error
}

func (l *stubUpstreamLoader) Load(context.Context, string) (collab.UpstreamInputs, error) {
	return l.inputs, l.err
}

type stubSearcher struct {
	results []collab.SearchResult
	err     error
}

func (s *stubSearcher) Search(context.Context, string, int) ([]collab.SearchResult, error) {
	return s.results, s.err
}

type stubArtifactStore struct {
	mu   sync.Mutex
	puts map[string]string
	err  error
}

func (s *stubArtifactStore) Put(_ context.Context, sessionID, name, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.puts == nil {
		s.puts = map[string]string{}
	}
	s.puts[sessionID+"/"+name] = content
	return sessionID + "/" + name, nil
}

type stubNotifier struct {
	notices []collab.CompletionNotice
	err     error
}

func (n *stubNotifier) Notify(_ context.Context, notice collab.CompletionNotice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

type stubCodeBundleFetcher struct {
	files []collab.SourceFile
	err   error
}

func (f *stubCodeBundleFetcher) Fetch(context.Context, string) ([]collab.SourceFile, error) {
	return f.files, f.err
}
