// Package queue defines message payloads exchanged over the message broker.
package queue

// AuthQueueName is the durable queue auth lifecycle events are published to.
const AuthQueueName = "auth.events"

// Event types emitted by the authentication core.
const (
	EventSignedUp        = "signed_up"
	EventSignedIn        = "signed_in"
	EventSignedOut       = "signed_out"
	EventSessionsRevoked = "sessions_revoked"
	EventRoleChanged     = "role_changed"
	EventUserDeleted     = "user_deleted"
)

// AuthEvent is published on every authentication lifecycle transition.  It
// carries enough information for downstream consumers to build an audit
// trail or trigger notifications without querying the primary database.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email"`
	SessionID  string `json:"session_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Role       string `json:"role,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
