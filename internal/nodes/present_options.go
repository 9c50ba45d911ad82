package nodes

import (
	"context"
	"fmt"
	"sort"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// recommendationWeights score each candidate option to produce an AI
// recommendation; the weighted sum is out of 100.
const (
	weightEaseOfUse = 30.0
	weightPopularity = 20.0
	weightRecency    = 15.0
	weightDocs       = 10.0
	weightCost       = 15.0
	weightSetupTime  = 10.0
)

// PresentOptions renders the researched candidates for the current gap as
// an agent_message event, including a computed AI recommendation.
// Progress is variable: it simply carries forward the research loop's
// current value rather than declaring its own target.
type PresentOptions struct{}

// NewPresentOptions constructs a PresentOptions node.
func NewPresentOptions() *PresentOptions { return &PresentOptions{} }

// Run implements sgraph.Node[state.Session].
func (n *PresentOptions) Run(_ context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	result := latestResearch(s, s.CurrentGapID)
	if result == nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: present_options has no research_results for gap %s", ErrInvalidState, s.CurrentGapID))
	}

	recommendation := recommend(result.Options)
	message := fmt.Sprintf("Here are the options for %s. Recommended: %s.", s.CurrentGapID, recommendation)

	delta := state.Session{
		CurrentStage: state.StagePresentOptions,
		ConversationHistory: []state.ConversationEntry{{
			Role:           state.RoleAgent,
			Message:        message,
			MessageType:    "option_presentation",
			Timestamp:      timeNow(),
			ExpectingInput: false,
		}},
	}
	return cont(delta)
}

// Recommend scores each option by the declared weights and returns the
// winner's name. Exported so the interrupt controller can resolve an
// "ai_recommendation" decision to the same option present_options showed.
func Recommend(options []state.ResearchOption) string {
	return recommend(options)
}

// recommend scores each option by the declared weights and returns the
// winner's name.
func recommend(options []state.ResearchOption) string {
	if len(options) == 0 {
		return ""
	}
	scored := append([]state.ResearchOption{}, options...)
	sort.SliceStable(scored, func(i, j int) bool {
		return optionScore(scored[i]) > optionScore(scored[j])
	})
	return scored[0].Name
}

func optionScore(o state.ResearchOption) float64 {
	ease := curveScore(o.LearningCurve)
	popularity := o.PopularityMetrics * 100
	recency := 50.0 // no freshness signal available; treat as neutral
	docs := 0.0
	if o.DocsURL != "" {
		docs = 100
	}
	cost := costScore(o.Cost)
	setup := setupScore(o.SetupTime)

	return (ease*weightEaseOfUse + popularity*weightPopularity + recency*weightRecency +
		docs*weightDocs + cost*weightCost + setup*weightSetupTime) / 100
}

func curveScore(curve string) float64 {
	switch curve {
	case "low":
		return 100
	case "medium":
		return 60
	case "high":
		return 20
	default:
		return 50
	}
}

func costScore(cost string) float64 {
	switch cost {
	case "free":
		return 100
	case "freemium":
		return 70
	case "paid":
		return 30
	default:
		return 50
	}
}

func setupScore(setup string) float64 {
	switch setup {
	case "minutes":
		return 100
	case "hours":
		return 70
	case "days":
		return 30
	default:
		return 50
	}
}

// latestResearch returns the most recently appended research_results entry
// for gapID, or nil if none exists.
func latestResearch(s state.Session, gapID string) *state.ResearchResult {
	for i := len(s.ResearchResults) - 1; i >= 0; i-- {
		if s.ResearchResults[i].GapID == gapID {
			return &s.ResearchResults[i]
		}
	}
	return nil
}
