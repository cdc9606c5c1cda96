package models

import "time"

// SessionState is the computed classification of a live browser session
// at poll time. It is never persisted; the state detector derives it
// from DOM probes on every check.
type SessionState string

const (
	StateLoading                SessionState = "loading"
	StateAwaitingAuthentication SessionState = "awaiting_authentication"
	StateConnected              SessionState = "connected"
	StateNetworkUnavailable     SessionState = "network_unavailable"
	StateGenericFailure         SessionState = "generic_failure"
)

// ConnectionStatus is the moderator-scoped status record written by the
// engine and read by dashboards.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionPending      ConnectionStatus = "pending"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// BrowserSession is the public metadata for a moderator's automated
// browser page. The live page handle is owned by the session registry
// and never leaves the engine.
type BrowserSession struct {
	ID           string    `json:"id"`
	ModeratorID  string    `json:"moderatorId"`
	LastKnownURL string    `json:"lastKnownUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StatusReport is returned by the status operation: the stored
// connection record plus a fresh probe when a session is live.
type StatusReport struct {
	ModeratorID string           `json:"moderatorId"`
	Connection  ConnectionStatus `json:"connection"`
	State       SessionState     `json:"state,omitempty"`
	HasSession  bool             `json:"hasSession"`
	Paused      bool             `json:"paused"`
	PauseReason string           `json:"pauseReason,omitempty"`
}
