package models

import "fmt"

// OutcomeStatus enumerates the terminal classifications an engine
// operation can resolve to. Expected, recoverable conditions (awaiting
// authentication, network down, still waiting) are statuses here rather
// than errors, so the HTTP layer can always answer 200 with a structured
// body describing the actual state.
type OutcomeStatus string

const (
	OutcomeSuccess                OutcomeStatus = "success"
	OutcomeFailure                OutcomeStatus = "failure"
	OutcomeAwaitingAuthentication OutcomeStatus = "awaiting_authentication"
	OutcomeNetworkUnavailable     OutcomeStatus = "network_unavailable"
	OutcomeStillWaiting           OutcomeStatus = "still_waiting"
	OutcomeWarning                OutcomeStatus = "warning"
)

// Outcome is the result type every engine operation speaks in.
type Outcome[T any] struct {
	Status  OutcomeStatus `json:"status"`
	Value   T             `json:"value,omitempty"`
	Message string        `json:"message,omitempty"`
}

// OK reports whether the operation reached its goal.
func (o Outcome[T]) OK() bool {
	return o.Status == OutcomeSuccess
}

// Success wraps a value in a successful outcome.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Status: OutcomeSuccess, Value: v}
}

// Failure builds a failed outcome with a formatted message.
func Failure[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Status: OutcomeFailure, Message: fmt.Sprintf(format, args...)}
}

// AwaitingAuthentication reports that the session is parked on the
// login-code screen and a human needs to scan it.
func AwaitingAuthentication[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Status: OutcomeAwaitingAuthentication, Message: fmt.Sprintf(format, args...)}
}

// NetworkUnavailable reports that the chat application lost its network.
func NetworkUnavailable[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Status: OutcomeNetworkUnavailable, Message: fmt.Sprintf(format, args...)}
}

// StillWaiting reports that a bounded wait elapsed with no resolution.
func StillWaiting[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Status: OutcomeStillWaiting, Message: fmt.Sprintf(format, args...)}
}

// Warning reports a condition that is not an error but should be
// surfaced, such as the operator closing the automation window.
func Warning[T any](format string, args ...interface{}) Outcome[T] {
	return Outcome[T]{Status: OutcomeWarning, Message: fmt.Sprintf(format, args...)}
}
