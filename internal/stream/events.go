package stream

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the event variants a session delivers.
type Kind string

const (
	// KindProgress reports how far along the server-side operation is.
	KindProgress Kind = "progress"
	// KindPartial carries an intermediate payload fragment.
	KindPartial Kind = "partial"
	// KindCompleted carries the final payload. Always the last event.
	KindCompleted Kind = "completed"
	// KindFailed marks the operation as failed. Always the last event.
	KindFailed Kind = "failed"
)

// Event is one observation of a long-running server-side operation. Callers
// receive the same Event values whether the session is reading a push stream
// or polling the status endpoint.
type Event struct {
	Kind    Kind
	Percent int
	Message string
	Payload json.RawMessage
	Reason  string
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindFailed
}

// wireEvent is the JSON shape shared by push-stream frames and status-poll
// responses.
type wireEvent struct {
	Status   string          `json:"status"`
	Progress *int            `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
	Partial  json.RawMessage `json:"partial,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// translate maps a wire observation onto the Event taxonomy. An unknown
// status is a protocol error, not a silently dropped frame.
func translate(we *wireEvent) (Event, error) {
	switch we.Status {
	case "completed":
		payload := we.Result
		if payload == nil {
			payload = we.Content
		}
		return Event{Kind: KindCompleted, Payload: payload}, nil

	case "failed":
		reason := we.Error
		if reason == "" {
			reason = "operation failed"
		}
		return Event{Kind: KindFailed, Reason: reason}, nil

	case "processing":
		if we.Partial != nil {
			return Event{Kind: KindPartial, Payload: we.Partial}, nil
		}
		percent := 0
		if we.Progress != nil {
			percent = *we.Progress
		}
		return Event{Kind: KindProgress, Percent: percent, Message: we.Message}, nil

	default:
		return Event{}, fmt.Errorf("unexpected operation status %q", we.Status)
	}
}
