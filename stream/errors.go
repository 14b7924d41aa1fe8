// ABOUTME: Error types reported by the answer stream client.
// ABOUTME: Separates transport failures, server-sent error events, and skipped malformed payloads.

package stream

import "fmt"

// TransportError means the stream could not be opened or closed before an
// end event arrived.
type TransportError struct {
	JobID      string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("stream %s: unexpected status %d", e.JobID, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("stream %s: connection failed: %v", e.JobID, e.Err)
	default:
		return fmt.Sprintf("stream %s: connection closed before end", e.JobID)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError carries the message of a server-sent error event.
type ProtocolError struct {
	JobID   string
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// MalformedPayloadError describes one event whose payload could not be used.
// The event is skipped and the stream continues.
type MalformedPayloadError struct {
	Event string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Event, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }
