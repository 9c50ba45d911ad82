package events

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogSink writes events to a writer as they are published, adapted from
// graph/emit's LogEmitter. Useful for local runs and for piping a session's
// activity to a file for audit.
type LogSink struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogSink constructs a LogSink. A nil writer defaults to os.Stdout.
func NewLogSink(writer io.Writer, jsonMode bool) *LogSink {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogSink{writer: writer, jsonMode: jsonMode}
}

// Write renders one event to the sink's writer.
func (l *LogSink) Write(ev Event) {
	if l.jsonMode {
		b, err := json.Marshal(ev)
		if err != nil {
			fmt.Fprintf(l.writer, "[%s] session=%s marshal_error=%v\n", ev.Kind, ev.SessionID, err)
			return
		}
		fmt.Fprintln(l.writer, string(b))
		return
	}
	fmt.Fprintf(l.writer, "[%s] session=%s node=%s msg=%q\n", ev.Kind, ev.SessionID, ev.NodeName, ev.Message)
}

// Tail reads ch (a channel returned by Bus.Subscribe) and writes every
// event to the sink until ch is
// closed (i.e. until the caller invokes the unsubscribe function returned
// by Bus.Subscribe). Intended to run in its own goroutine.
func (l *LogSink) Tail(ch <-chan Event) {
	for ev := range ch {
		l.Write(ev)
	}
}
