package types

import "fmt"

// NetworkError reports a failed request or channel open. It wraps the
// underlying transport error so callers can keep unwrapping.
type NetworkError struct {
	Op     string // "list conversations", "send message", "dial", ...
	URL    string
	Status int // HTTP status when the server answered, 0 otherwise
	Detail string
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: request failed (HTTP %d)", e.Op, e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError rejects an action locally, before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NotFoundError means the referenced conversation is no longer available,
// either deleted server-side or access was revoked.
type NotFoundError struct {
	ConversationID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation %d is no longer available", e.ConversationID)
}

// ProtocolError marks a realtime frame that could not be parsed or carried
// an unrecognized event. These are dropped, never surfaced.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad realtime frame: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("bad realtime frame: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
