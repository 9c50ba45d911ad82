package events

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewOTelNodeSink adapts tracer into an sgraph.EventSink-shaped function
// (nodeName, kind string, meta map[string]interface{}), grounded on
// graph/emit's OTelEmitter: each node event becomes an instant span (start
// now, end immediately) carrying the node name, kind, and every meta field
// as span attributes, with span status set to error when meta carries an
// "error" key. Unlike OTelEmitter this only covers node-level tracing
// (node_start/node_end/routing_decision); session-level events go through
// Bus.Publish instead, since those do carry a session_id.
//
// The returned function matches sgraph.EventSink's signature directly so
// it can be passed to nodes.BuildEngine in place of, or composed with, the
// scheduler's own EventSink.
func NewOTelNodeSink(tracer trace.Tracer) func(nodeName, kind string, meta map[string]interface{}) {
	return func(nodeName, kind string, meta map[string]interface{}) {
		_, span := tracer.Start(context.Background(), kind)
		defer span.End()

		span.SetAttributes(attribute.String("node_name", nodeName))
		for k, v := range meta {
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
		}
		if errMsg, ok := meta["error"].(string); ok {
			span.SetStatus(codes.Error, errMsg)
			span.RecordError(fmt.Errorf("%s", errMsg))
		}
	}
}

// ComposeNodeSinks returns a sink that calls every non-nil sink in order,
// so a caller can layer OTel tracing on top of the scheduler's own
// EventSink without either one losing events.
func ComposeNodeSinks(sinks ...func(nodeName, kind string, meta map[string]interface{})) func(nodeName, kind string, meta map[string]interface{}) {
	return func(nodeName, kind string, meta map[string]interface{}) {
		for _, sink := range sinks {
			if sink != nil {
				sink(nodeName, kind, meta)
			}
		}
	}
}
