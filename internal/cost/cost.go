// Package cost tracks token usage and estimated spend per Tracker, a
// feature the distilled workflow description never mentions but that any
// system making repeated paid LLM calls across a multi-stage workflow
// needs in order to answer "how much have these calls cost". Totals are
// not split by session, and nothing here enforces a spending cap. Token counting is grounded on pkoukk/tiktoken-go;
// pricing mirrors the per-model rate table pattern common across the
// example pack's LLM-calling code.
package cost

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Rate is a model's price per 1,000 tokens, in USD.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// defaultRates covers the models the collab adapters are wired to. Unknown
// models fall back to a conservative estimate rather than erroring, since a
// missing rate should never block a workflow from completing.
var defaultRates = map[string]Rate{
	"claude-sonnet-4-5-20250929": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"gpt-4o":                     {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gemini-1.5-pro":             {InputPer1K: 0.00125, OutputPer1K: 0.005},
}

const fallbackRate = 0.005

// Tracker accumulates token and dollar spend for every completion recorded
// against it; cmd/specforge builds one per process, so its totals cover all
// sessions together. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	encoding    *tiktoken.Tiktoken
	rates       map[string]Rate
	inputTokens int
	outputTokens int
	spendUSD    float64
	byModel     map[string]int
}

// NewTracker builds a Tracker using the cl100k_base encoding (the encoding
// shared by GPT-4-class and, closely enough for estimation purposes,
// Claude and Gemini models).
func NewTracker() (*Tracker, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &Tracker{
		encoding: enc,
		rates:    defaultRates,
		byModel:  make(map[string]int),
	}, nil
}

// CountTokens returns the token count tiktoken assigns to text.
func (t *Tracker) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// RecordCompletion charges a single Complete() call against the tracker's
// running total, given the raw prompt and response text.
func (t *Tracker) RecordCompletion(modelName, prompt, response string) {
	in := t.CountTokens(prompt)
	out := t.CountTokens(response)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.inputTokens += in
	t.outputTokens += out
	t.byModel[modelName] += in + out

	rate, ok := t.rates[modelName]
	if !ok {
		rate = Rate{InputPer1K: fallbackRate, OutputPer1K: fallbackRate}
	}
	t.spendUSD += float64(in)/1000*rate.InputPer1K + float64(out)/1000*rate.OutputPer1K
}

// Summary is a point-in-time snapshot of a tracker's accumulated cost.
type Summary struct {
	InputTokens  int
	OutputTokens int
	SpendUSD     float64
	ByModel      map[string]int
}

// Snapshot returns the tracker's current totals.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byModel := make(map[string]int, len(t.byModel))
	for k, v := range t.byModel {
		byModel[k] = v
	}
	return Summary{
		InputTokens:  t.inputTokens,
		OutputTokens: t.outputTokens,
		SpendUSD:     t.spendUSD,
		ByModel:      byModel,
	}
}
