package nodes

import (
	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// Deps bundles every collaborator the node library needs. BuildEngine
// wires them into the concrete node instances and registers the full
// graph (spine, loops, and the five conditional edges).
type Deps struct {
	UpstreamLoader    collab.UpstreamLoader
	Completer         collab.Completer
	Searcher          collab.Searcher
	ResearchCache     *collab.ResearchCache
	CodeBundleFetcher collab.CodeBundleFetcher
	ArtifactStore     collab.ArtifactStore
	Notifier          collab.DownstreamNotifier
	ProjectName       string

	StepSink sgraph.StepSink[state.Session]
	Events   sgraph.EventSink
	Options  sgraph.Options

	// QualityThreshold overrides the TRD/architecture acceptance score
	// (out of 100). Zero keeps the package default.
	QualityThreshold int
	// OptionsPerGap overrides how many researched candidates
	// present_options shows per gap. Zero keeps the package default.
	OptionsPerGap int
	// MaxGapsPerSession caps identify_tech_gaps' output. Zero means
	// unbounded, the package default.
	MaxGapsPerSession int
}

// Node name constants, used both to register nodes and to wire edges.
const (
	NodeLoadInputs             = "load_inputs"
	NodeAnalyzeCompleteness    = "analyze_completeness"
	NodeAskClarification       = "ask_clarification"
	NodeIdentifyTechGaps       = "identify_tech_gaps"
	NodeResearchTechnologies   = "research_technologies"
	NodePresentOptions         = "present_options"
	NodeWaitUserDecision       = "wait_user_decision"
	NodeValidateDecision       = "validate_decision"
	NodeWarnUser               = "warn_user"
	NodeParseCode              = "parse_code"
	NodeInferAPI               = "infer_api"
	NodeGenerateTRD            = "generate_trd"
	NodeValidateTRD            = "validate_trd"
	NodeGenerateAPISpec        = "generate_api_spec"
	NodeGenerateDBSchema       = "generate_db_schema"
	NodeGenerateDBERD          = "generate_db_erd"
	NodeGenerateArchitecture   = "generate_architecture"
	NodeValidateArchitecture   = "validate_architecture"
	NodeGenerateTechStackDoc   = "generate_tech_stack_doc"
	NodeSave                   = "save"
	NodeNotify                 = "notify"
)

// BuildEngine constructs the full session graph: every node in the
// pipeline, wired by the unconditional spine and the five conditional
// branch points.
func BuildEngine(deps Deps) *sgraph.Engine[state.Session] {
	if deps.QualityThreshold > 0 {
		qualityThreshold = deps.QualityThreshold
	}
	if deps.OptionsPerGap > 0 {
		optionsPerGap = deps.OptionsPerGap
	}
	if deps.MaxGapsPerSession > 0 {
		maxGapsPerSession = deps.MaxGapsPerSession
	}

	engine := sgraph.New[state.Session](state.Reduce, state.AssertInvariants, deps.StepSink, deps.Events, deps.Options)

	engine.Add(NodeLoadInputs, NewLoadInputs(deps.UpstreamLoader), 5)
	engine.Add(NodeAnalyzeCompleteness, NewAnalyzeCompleteness(deps.Completer), 15)
	engine.Add(NodeAskClarification, NewAskClarification(), 20)
	engine.Add(NodeIdentifyTechGaps, NewIdentifyTechGaps(deps.Completer), 25)
	engine.Add(NodeResearchTechnologies, NewResearchTechnologies(deps.Searcher, deps.Completer, deps.ResearchCache), 50)
	engine.Add(NodePresentOptions, NewPresentOptions(), 50)
	engine.Add(NodeWaitUserDecision, NewWaitUserDecision(), 50)
	engine.Add(NodeValidateDecision, NewValidateDecision(deps.Completer), 50)
	engine.Add(NodeWarnUser, NewWarnUser(), 50)
	engine.Add(NodeParseCode, NewParseCode(deps.CodeBundleFetcher, deps.Completer), 55)
	engine.Add(NodeInferAPI, NewInferAPI(deps.Completer), 60)
	engine.Add(NodeGenerateTRD, NewGenerateTRD(deps.Completer), 70)
	engine.Add(NodeValidateTRD, NewValidateTRD(deps.Completer), 72)
	engine.Add(NodeGenerateAPISpec, NewGenerateAPISpec(deps.ProjectName), 80)
	engine.Add(NodeGenerateDBSchema, NewGenerateDBSchema(deps.Completer), 85)
	engine.Add(NodeGenerateDBERD, NewGenerateDBERD(), 87)
	engine.Add(NodeGenerateArchitecture, NewGenerateArchitecture(deps.Completer), 90)
	engine.Add(NodeValidateArchitecture, NewValidateArchitecture(deps.Completer), 92)
	engine.Add(NodeGenerateTechStackDoc, NewGenerateTechStackDoc(deps.Completer), 95)
	engine.Add(NodeSave, NewSave(deps.ArtifactStore), 98)
	engine.Add(NodeNotify, NewNotify(deps.Notifier), 100)

	// Unconditional spine.
	engine.Connect(NodeLoadInputs, NodeAnalyzeCompleteness, nil)
	engine.Connect(NodeParseCode, NodeInferAPI, nil)
	engine.Connect(NodeInferAPI, NodeGenerateTRD, nil)
	engine.Connect(NodeGenerateTRD, NodeValidateTRD, nil)
	engine.Connect(NodeGenerateAPISpec, NodeGenerateDBSchema, nil)
	engine.Connect(NodeGenerateDBSchema, NodeGenerateDBERD, nil)
	engine.Connect(NodeGenerateDBERD, NodeGenerateArchitecture, nil)
	engine.Connect(NodeGenerateArchitecture, NodeValidateArchitecture, nil)
	engine.Connect(NodeValidateArchitecture, NodeGenerateTechStackDoc, nil)
	engine.Connect(NodeGenerateTechStackDoc, NodeSave, nil)
	engine.Connect(NodeSave, NodeNotify, nil)
	engine.Connect(NodeNotify, sgraph.End, nil)

	// ask_clarification, wait_user_decision, and warn_user all suspend
	// (Hint = WaitForUser), which makes the engine return before it ever
	// evaluates routing for that node: there is no edge to register for
	// them here. Resuming a suspended session calls Run with an explicit
	// startNode chosen by the interrupt controller rather than by these
	// edges: ask_clarification resumes at analyze_completeness;
	// wait_user_decision resumes at validate_decision, or at
	// research_technologies (same gap) if the decision was "search:<q>";
	// warn_user on "continue" resumes at research_technologies while gap
	// decisions are still pending, otherwise at parse_code; on "reselect"
	// it resumes at present_options.

	// Conditional edge 1: analyze_completeness -> identify_tech_gaps | ask_clarification.
	engine.Connect(NodeAnalyzeCompleteness, NodeIdentifyTechGaps, func(s state.Session) bool {
		return s.CompletenessScore >= 80
	})
	engine.Connect(NodeAnalyzeCompleteness, NodeAskClarification, func(state.Session) bool { return true })

	// Conditional edge 2: identify_tech_gaps -> research_technologies | parse_code.
	engine.Connect(NodeIdentifyTechGaps, NodeResearchTechnologies, func(s state.Session) bool {
		return len(s.TechGaps) > 0
	})
	engine.Connect(NodeIdentifyTechGaps, NodeParseCode, func(state.Session) bool { return true })

	// research_technologies always proceeds to present the options it found.
	engine.Connect(NodeResearchTechnologies, NodePresentOptions, nil)
	engine.Connect(NodePresentOptions, NodeWaitUserDecision, nil)

	// Conditional edge 4 (checked first, ahead of edge 3, in tie-break order):
	// validate_decision -> warn_user | (fall through to edge 3).
	engine.Connect(NodeValidateDecision, NodeWarnUser, func(s state.Session) bool {
		return s.PendingWarningGapID != ""
	})
	// Conditional edge 3: validate_decision -> research_technologies (next
	// gap) | parse_code, once no critical warning is pending.
	engine.Connect(NodeValidateDecision, NodeResearchTechnologies, func(s state.Session) bool {
		return len(s.PendingDecisions) > 0
	})
	engine.Connect(NodeValidateDecision, NodeParseCode, func(state.Session) bool { return true })

	// Conditional edge 5: validate_trd -> generate_api_spec | generate_trd (retry).
	engine.Connect(NodeValidateTRD, NodeGenerateAPISpec, func(s state.Session) bool {
		return s.TRDValidation.IsValid || s.IterationCount >= maxRegenerations
	})
	engine.Connect(NodeValidateTRD, NodeGenerateTRD, func(state.Session) bool { return true })

	engine.StartAt(NodeLoadInputs)
	return engine
}
