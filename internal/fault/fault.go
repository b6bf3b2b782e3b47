// Package fault defines the error taxonomy shared by the console and the
// remote service client. Every failure an operator can trigger maps to one of
// these types and is surfaced as a single notification.
package fault

import "fmt"

// ValidationError reports a client-side precondition that failed before any
// network or device access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DeviceError means the camera could not be acquired (denied, busy, absent).
type DeviceError struct {
	Cause error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera unavailable: %v", e.Cause)
}

func (e *DeviceError) Unwrap() error { return e.Cause }

// NotReadyError means a frame was requested before the feed produced one.
type NotReadyError struct{}

func (e *NotReadyError) Error() string {
	return "video feed not ready, wait a moment and retry"
}

// EncodeError means rendering the current frame yielded no image payload.
type EncodeError struct{}

func (e *EncodeError) Error() string {
	return "frame encoding produced no payload"
}

// RemoteError is a non-success response from the recognition service. Detail
// carries the server-reported message, or the per-operation fallback when the
// body could not be decoded.
type RemoteError struct {
	Op     string
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.Status, e.Detail)
}

// TransportError means the request never completed: DNS failure, refused
// connection, broken pipe. The remote state is unknown.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
