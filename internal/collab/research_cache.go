package collab

import (
	"context"
	"fmt"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

// ResearchCache remembers prior research lookups so semantically similar
// tech gaps (e.g. "postgres vs mysql" researched twice across sessions,
// or re-asked after a resume) don't pay for a fresh web search and LLM
// summarization. Backed by chromem-go, an embedded embedding-indexed
// vector store with no external service to run.
type ResearchCache struct {
	collection *chromem.Collection
	ttl        time.Duration
}

// NewResearchCache opens (or creates) a chromem-go collection named
// "research_options" using embed to turn gap descriptions into vectors.
// ttl <= 0 means cached entries never expire.
func NewResearchCache(ctx context.Context, embed chromem.EmbeddingFunc, ttl time.Duration) (*ResearchCache, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("research_options", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create research_options collection: %w", err)
	}
	return &ResearchCache{collection: collection, ttl: ttl}, nil
}

// Remember indexes a research result under the gap description that
// produced it, so a later, differently-worded gap with similar meaning can
// retrieve it.
func (c *ResearchCache) Remember(ctx context.Context, gapID, gapDescription, summary string) error {
	doc := chromem.Document{
		ID:      gapID,
		Content: gapDescription,
		Metadata: map[string]string{
			"gap_id":        gapID,
			"summary":       summary,
			"remembered_at": time.Now().Format(time.RFC3339),
		},
	}
	return c.collection.AddDocument(ctx, doc)
}

// Lookup returns the cached summary for the closest previously-researched
// gap description, if its similarity to query meets minSimilarity and the
// entry has not expired under the cache's ttl.
func (c *ResearchCache) Lookup(ctx context.Context, query string, minSimilarity float32) (summary string, found bool, err error) {
	if c.collection.Count() == 0 {
		return "", false, nil
	}
	results, err := c.collection.Query(ctx, query, 1, nil, nil)
	if err != nil {
		return "", false, fmt.Errorf("query research cache: %w", err)
	}
	if len(results) == 0 || results[0].Similarity < minSimilarity {
		return "", false, nil
	}
	if c.ttl > 0 {
		if remembered, parseErr := time.Parse(time.RFC3339, results[0].Metadata["remembered_at"]); parseErr == nil {
			if time.Since(remembered) > c.ttl {
				return "", false, nil
			}
		}
	}
	return results[0].Metadata["summary"], true, nil
}
