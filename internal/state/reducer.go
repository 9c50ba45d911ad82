package state

import (
	"fmt"
)

// Reduce merges a patch produced by a node into the previous session state.
//
// It follows the same reducer pattern as the graph package's
// Reducer[S] (see graph/engine.go and examples/multi-llm-review's
// ReduceReviewState): append-only fields are concatenated so checkpoint
// replay never drops history; every other field is last-write-wins, applied
// in node emission order.
func Reduce(prev, delta Session) Session {
	// Identity is written once; never overwritten by a later patch.
	if prev.SessionID == "" {
		prev.SessionID = delta.SessionID
	}
	if prev.ProjectID == "" {
		prev.ProjectID = delta.ProjectID
	}
	if prev.UserID == "" {
		prev.UserID = delta.UserID
	}
	if prev.UpstreamJobID == "" {
		prev.UpstreamJobID = delta.UpstreamJobID
	}

	// Inputs, written once by load_inputs.
	if delta.PRDContent != "" {
		prev.PRDContent = delta.PRDContent
	}
	for k, v := range delta.DesignDocs {
		if prev.DesignDocs == nil {
			prev.DesignDocs = map[string]string{}
		}
		prev.DesignDocs[k] = v
	}
	if delta.CodeBundleRef != nil {
		prev.CodeBundleRef = delta.CodeBundleRef
	}
	if len(delta.DesignDecisions) > 0 {
		prev.DesignDecisions = append(prev.DesignDecisions, delta.DesignDecisions...)
	}

	// Analysis - last-write-wins, re-emitted in full by analyze_completeness.
	if delta.CompletenessScore != 0 {
		prev.CompletenessScore = delta.CompletenessScore
	}
	if delta.MissingElements != nil {
		prev.MissingElements = delta.MissingElements
	}
	if delta.AmbiguousElements != nil {
		prev.AmbiguousElements = delta.AmbiguousElements
	}
	if delta.ClarificationQueue != nil {
		prev.ClarificationQueue = delta.ClarificationQueue
	}
	if delta.TechGaps != nil {
		prev.TechGaps = delta.TechGaps
	}

	// Research & decisions.
	if len(delta.ResearchResults) > 0 {
		prev.ResearchResults = append(prev.ResearchResults, delta.ResearchResults...)
	}
	for gapID, pending := range delta.PendingDecisions {
		if prev.PendingDecisions == nil {
			prev.PendingDecisions = map[string]bool{}
		}
		if pending {
			prev.PendingDecisions[gapID] = true
		} else {
			delete(prev.PendingDecisions, gapID)
		}
	}
	if len(delta.UserDecisions) > 0 {
		prev.UserDecisions = append(prev.UserDecisions, delta.UserDecisions...)
		// A decision resolves its gap (invariant 3).
		for _, d := range delta.UserDecisions {
			delete(prev.PendingDecisions, d.GapID)
		}
	}
	if delta.ValidationWarnings != nil {
		prev.ValidationWarnings = append(prev.ValidationWarnings, delta.ValidationWarnings...)
	}

	// Code/API inference.
	if delta.ParsedComponents != nil {
		prev.ParsedComponents = delta.ParsedComponents
	}
	if delta.InferredAPISpec != nil {
		prev.InferredAPISpec = delta.InferredAPISpec
	}

	// Generated artifacts.
	if delta.TRDDraft != "" {
		prev.TRDDraft = delta.TRDDraft
	}
	if delta.TRDValidation.Score != 0 || delta.TRDValidation.IsValid {
		prev.TRDValidation = delta.TRDValidation
	}
	if delta.FinalTRD != "" {
		prev.FinalTRD = delta.FinalTRD
	}
	if delta.APISpecification != nil {
		prev.APISpecification = delta.APISpecification
	}
	if delta.DBSchema.DDL != "" {
		prev.DBSchema = delta.DBSchema
	}
	if delta.DBERD != "" {
		prev.DBERD = delta.DBERD
	}
	if delta.ArchitectureDiagram != "" {
		prev.ArchitectureDiagram = delta.ArchitectureDiagram
	}
	if delta.ArchitectureValidation.Score != 0 {
		prev.ArchitectureValidation = delta.ArchitectureValidation
	}
	if delta.TechStackDocument != nil {
		prev.TechStackDocument = delta.TechStackDocument
	}

	// Workflow control.
	if delta.CurrentStage != "" {
		prev.CurrentStage = delta.CurrentStage
	}
	if delta.IterationCount != 0 {
		prev.IterationCount = delta.IterationCount
	}
	if delta.ResearchIteration != 0 {
		prev.ResearchIteration = delta.ResearchIteration
	}
	if delta.ProgressPercentage > prev.ProgressPercentage {
		prev.ProgressPercentage = delta.ProgressPercentage
	}
	if !delta.StartedAt.IsZero() {
		prev.StartedAt = delta.StartedAt
	}
	if delta.CompletedAt != nil {
		prev.CompletedAt = delta.CompletedAt
	}
	if len(delta.Errors) > 0 {
		prev.Errors = append(prev.Errors, delta.Errors...)
	}
	if len(delta.ConversationHistory) > 0 {
		prev.ConversationHistory = append(prev.ConversationHistory, delta.ConversationHistory...)
	}
	if delta.CurrentGapID != "" {
		prev.CurrentGapID = delta.CurrentGapID
	}
	if delta.CurrentSearchQuery != "" {
		prev.CurrentSearchQuery = delta.CurrentSearchQuery
	} else if delta.clearSearchQuery {
		prev.CurrentSearchQuery = ""
	}
	if delta.PendingWarningGapID != "" {
		prev.PendingWarningGapID = delta.PendingWarningGapID
	} else if delta.clearPendingWarning {
		prev.PendingWarningGapID = ""
	}
	if delta.WaitingInput != nil {
		prev.WaitingInput = delta.WaitingInput
	} else if delta.clearWaitingInput {
		prev.WaitingInput = nil
	}
	if delta.ValidationReport.TRD.Score != 0 || delta.ValidationReport.TRDForcedPass {
		prev.ValidationReport = delta.ValidationReport
	}
	if delta.ArtifactID != "" {
		prev.ArtifactID = delta.ArtifactID
	}
	if delta.ArtifactVersion != 0 {
		prev.ArtifactVersion = delta.ArtifactVersion
	}

	return prev
}

// ClearWaitingInput returns a delta that removes WaitingInput when merged.
func ClearWaitingInput(delta Session) Session {
	delta.clearWaitingInput = true
	return delta
}

// ClearPendingWarning returns a delta that removes PendingWarningGapID when merged.
func ClearPendingWarning(delta Session) Session {
	delta.clearPendingWarning = true
	return delta
}

// ClearSearchQuery returns a delta that removes CurrentSearchQuery when merged.
func ClearSearchQuery(delta Session) Session {
	delta.clearSearchQuery = true
	return delta
}

// AssertInvariants validates the session's structural invariants (progress
// monotonicity, pending-decision/tech-gap consistency, append-only field
// growth, score ranges, and retry-loop caps) and returns a descriptive error
// for the first violation found, or nil.
func AssertInvariants(prev, next Session) error {
	if next.ProgressPercentage < prev.ProgressPercentage {
		return fmt.Errorf("invariant violation: progress_percentage decreased from %.1f to %.1f", prev.ProgressPercentage, next.ProgressPercentage)
	}
	gapIDs := make(map[string]bool, len(next.TechGaps))
	for _, g := range next.TechGaps {
		gapIDs[g.ID] = true
	}
	for gapID := range next.PendingDecisions {
		if !gapIDs[gapID] {
			return fmt.Errorf("invariant violation: pending_decisions contains unknown gap_id %q", gapID)
		}
	}
	if len(next.ConversationHistory) < len(prev.ConversationHistory) {
		return fmt.Errorf("invariant violation: conversation_history shrank")
	}
	if len(next.ResearchResults) < len(prev.ResearchResults) {
		return fmt.Errorf("invariant violation: research_results shrank")
	}
	if len(next.UserDecisions) < len(prev.UserDecisions) {
		return fmt.Errorf("invariant violation: user_decisions shrank")
	}
	if len(next.Errors) < len(prev.Errors) {
		return fmt.Errorf("invariant violation: errors shrank")
	}
	if next.CompletenessScore < 0 || next.CompletenessScore > 100 {
		return fmt.Errorf("invariant violation: completeness_score %d out of [0,100]", next.CompletenessScore)
	}
	if next.TRDValidation.Score < 0 || next.TRDValidation.Score > 100 {
		return fmt.Errorf("invariant violation: trd_validation.score %d out of [0,100]", next.TRDValidation.Score)
	}
	const maxIter = 3
	if next.IterationCount > maxIter {
		return fmt.Errorf("invariant violation: iteration_count %d exceeds cap %d", next.IterationCount, maxIter)
	}
	if next.FinalTRD != "" && !next.TRDValidation.IsValid && next.IterationCount < maxIter {
		return fmt.Errorf("invariant violation: final_trd set before trd_validation.is_valid or cap reached")
	}
	return nil
}
