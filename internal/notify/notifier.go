package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/model"
)

// Notifier receives session lifecycle notifications. The lifecycle manager
// guarantees at most one call per session per kind via the notification-sent
// flags; implementations do not need their own deduplication.
//
// Actual delivery (email to the host) is owned by an external service; the
// default implementation only logs.
type Notifier interface {
	SessionStarted(ctx context.Context, session *model.Session) error
	SessionEnded(ctx context.Context, session *model.Session) error
}

type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SessionStarted(ctx context.Context, session *model.Session) error {
	evt := log.Info().
		Str("sessionId", session.SessionID).
		Str("hostUserId", session.HostUserID)
	if session.ClientName != nil {
		evt = evt.Str("clientName", *session.ClientName)
	}
	evt.Msg("session start notification")
	return nil
}

func (n *LogNotifier) SessionEnded(ctx context.Context, session *model.Session) error {
	log.Info().
		Str("sessionId", session.SessionID).
		Str("hostUserId", session.HostUserID).
		Msg("session end notification")
	return nil
}
