/*
Package types defines the wire-level data structures and error taxonomy
shared across duochat.

# Wire Types

Conversation:
  - One two-party thread as the server reports it
  - Carries the partner profile and last-message preview fields
  - LastMessageAt is nil for threads with no messages yet

Message:
  - One unit of conversation content
  - DisplayText already accounts for deletion tombstones
  - CanDeleteForSelf/CanDeleteForAll gate the delete actions

User:
  - A directory entry returned by the user search endpoint

Envelope:
  - One realtime frame: {event, conversation?, message?}
  - Only the "message" event is meaningful to the client

# Error Taxonomy

NetworkError    - request or channel-open failure; retryable
ValidationError - rejected locally before any network call
NotFoundError   - the referenced conversation no longer exists
ProtocolError   - malformed or unrecognized realtime frame; dropped

All four implement error and unwrap cleanly, so call sites discriminate
with errors.As and keep wrapping with fmt.Errorf("%w").

# Field Tags

All wire types use JSON tags matching the server payloads exactly.
Timestamps are RFC 3339 strings on the wire and time.Time in Go.
*/
package types
