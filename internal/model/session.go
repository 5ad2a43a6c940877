package model

import (
	"encoding/json"
	"time"
)

// Session is the central entity. SessionID is the opaque external identifier
// used in client-facing URLs; ID is the internal row key. PasswordHash is a
// SHA-256 hex digest and is never reversible. The four offer/answer fields
// and the two ICE candidate lists are opaque to the relay; ICE lists are
// append-only for the lifetime of a signaling round.
type Session struct {
	ID                    string           `db:"id" json:"-"`
	SessionID             string           `db:"session_id" json:"sessionId"`
	PasswordHash          string           `db:"password_hash" json:"-"`
	Status                SessionStatus    `db:"status" json:"status"`
	HostUserID            string           `db:"host_user_id" json:"hostUserId"`
	ClientName            *string          `db:"client_name" json:"clientName,omitempty"`
	ClientIP              *string          `db:"client_ip" json:"clientIp,omitempty"`
	HostOffer             *string          `db:"host_offer" json:"hostOffer,omitempty"`
	ClientAnswer          *string          `db:"client_answer" json:"clientAnswer,omitempty"`
	ClientOffer           *string          `db:"client_offer" json:"clientOffer,omitempty"`
	HostAnswer            *string          `db:"host_answer" json:"hostAnswer,omitempty"`
	HostICECandidates     *json.RawMessage `db:"host_ice_candidates" json:"hostIceCandidates,omitempty"`
	ClientICECandidates   *json.RawMessage `db:"client_ice_candidates" json:"clientIceCandidates,omitempty"`
	StartNotificationSent bool             `db:"start_notification_sent" json:"startNotificationSent"`
	EndNotificationSent   bool             `db:"end_notification_sent" json:"endNotificationSent"`
	AutoRecord            bool             `db:"auto_record" json:"autoRecord"`
	CalendarEventID       *string          `db:"calendar_event_id" json:"calendarEventId,omitempty"`
	CalendarSource        *string          `db:"calendar_source" json:"calendarSource,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"createdAt"`
	ExpiresAt             time.Time        `db:"expires_at" json:"expiresAt"`
	ConnectedAt           *time.Time       `db:"connected_at" json:"connectedAt,omitempty"`
	EndedAt               *time.Time       `db:"ended_at" json:"endedAt,omitempty"`
	UpdatedAt             time.Time        `db:"updated_at" json:"-"`
}

type CreateSessionParams struct {
	ID              string
	SessionID       string
	PasswordHash    string
	HostUserID      string
	AutoRecord      bool
	CalendarEventID *string
	CalendarSource  *string
	ExpiresAt       time.Time
}
