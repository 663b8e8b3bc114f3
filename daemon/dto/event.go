package dto

import "time"

// CapturedError holds an error observed during an operation, along with a
// structured trace captured for post-mortem display. It is never used to
// control flow inside the core — only carried for display and alarm detail.
type CapturedError struct {
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// EventID is the stable document identifier of a SystemEvent, decomposable
// into the (partition, row) pair used by the archive document view.
// Partition/Row round-trip through String/ParseEventID when both are
// non-empty and Partition contains no ':'; no escaping is applied.
type EventID struct {
	Partition string `json:"partition"`
	Row       string `json:"row"`
}

// String renders the id in "partition:row" form.
func (id EventID) String() string {
	return id.Partition + ":" + id.Row
}

// SystemEvent is one observation emitted by a monitored application.
// Immutable once ingested.
type SystemEvent struct {
	ID              EventID        `json:"id"`
	ApplicationName string         `json:"applicationName"`
	OperationName   string         `json:"operationName"`
	Success         bool           `json:"success"`
	Error           *CapturedError `json:"error,omitempty"`
	Parameters      any            `json:"parameters,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Failed reports whether the event represents a failed operation outcome.
func (e SystemEvent) Failed() bool {
	return !e.Success
}
