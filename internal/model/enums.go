package model

// SessionStatus drives all authorization and polling logic. Transitions are
// monotonic: a session never returns from a terminal status.
type SessionStatus string

const (
	SessionStatusWaiting      SessionStatus = "waiting"
	SessionStatusConnecting   SessionStatus = "connecting"
	SessionStatusConnected    SessionStatus = "connected"
	SessionStatusDisconnected SessionStatus = "disconnected"
	SessionStatusExpired      SessionStatus = "expired"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusWaiting, SessionStatusConnecting, SessionStatusConnected,
		SessionStatusDisconnected, SessionStatusExpired:
		return true
	}
	return false
}

func (s SessionStatus) Terminal() bool {
	return s == SessionStatusDisconnected || s == SessionStatusExpired
}

// SignalingRole identifies which side of a session a signaling caller is on.
type SignalingRole string

const (
	RoleHost   SignalingRole = "host"
	RoleClient SignalingRole = "client"
)

func (r SignalingRole) Valid() bool {
	return r == RoleHost || r == RoleClient
}

// LogEvent names for the append-only session audit trail.
type LogEvent string

const (
	LogSessionCreated      LogEvent = "session_created"
	LogClientJoined        LogEvent = "client_joined"
	LogClientOfferReceived LogEvent = "client_offer_received"
	LogHostConnected       LogEvent = "host_connected"
	LogSessionEnded        LogEvent = "session_ended"
	LogClientDisconnected  LogEvent = "client_disconnected"
	LogSessionExpired      LogEvent = "session_expired"
	LogStatusUpdated       LogEvent = "status_updated"
)

// NotificationKind selects one of the two once-only notification flags.
type NotificationKind string

const (
	NotificationStart NotificationKind = "start"
	NotificationEnd   NotificationKind = "end"
)
