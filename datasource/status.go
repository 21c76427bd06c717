// Package datasource implements the streaming and polling update processors that feed the
// data store from the control plane.
package datasource

import "time"

// State describes the current lifecycle state of an update processor.
type State string

// The possible data-source states.
const (
	StateInitializing State = "INITIALIZING"
	StateValid        State = "VALID"
	StateInterrupted  State = "INTERRUPTED"
	StateOff          State = "OFF"
)

// ErrorKind categorizes why a data source stopped or was interrupted.
type ErrorKind string

// The possible data-source error kinds.
const (
	ErrorKindNetwork      ErrorKind = "NETWORK_ERROR"
	ErrorKindErrorResponse ErrorKind = "ERROR_RESPONSE"
	ErrorKindInvalidData  ErrorKind = "INVALID_DATA"
)

// StatusInfo describes a single data-source status transition.
type StatusInfo struct {
	State      State
	Since      time.Time
	ErrorKind  ErrorKind
	StatusCode int
	Message    string
}
