package collab

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/specforge/trdgraph/internal/state"
)

// DecisionPayload is the loosely-typed shape a submit_decision call
// arrives as (JSON body decoded into map[string]interface{} by the HTTP
// layer) before it is validated against the session's pending gaps.
type DecisionPayload struct {
	GapID        string                 `mapstructure:"gap_id"`
	SelectedName string                 `mapstructure:"selected_option"`
	Rationale    string                 `mapstructure:"rationale"`
	Source       string                 `mapstructure:"source"`
	Extra        map[string]interface{} `mapstructure:",remain"`
}

// DecodeDecision converts a raw decision payload (as received over HTTP)
// into a typed state.UserDecision. Uses mapstructure rather than
// encoding/json because the payload has already been unmarshaled into
// map[string]interface{} by the transport layer and decoding it a second
// time through JSON would require re-marshaling first.
func DecodeDecision(raw map[string]interface{}) (state.UserDecision, error) {
	var payload DecisionPayload
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return state.UserDecision{}, fmt.Errorf("decode decision payload: %w", err)
	}
	if payload.GapID == "" {
		return state.UserDecision{}, fmt.Errorf("decision payload missing gap_id")
	}
	if payload.SelectedName == "" {
		return state.UserDecision{}, fmt.Errorf("decision payload missing selected_option")
	}

	source := state.DecisionSource(payload.Source)
	if source == "" {
		source = state.SourceUser
	}

	return state.UserDecision{
		GapID:      payload.GapID,
		ChosenName: payload.SelectedName,
		Reason:     payload.Rationale,
		Source:     source,
		Timestamp:  timeNow(),
	}, nil
}
