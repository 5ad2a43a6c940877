package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/config"
	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/metrics"
	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/notify"
	"github.com/remotehand/signaling-server-go/internal/repository"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// SessionService owns the session lifecycle: creation, the status state
// machine, expiry, the audit trail and at-most-once start/end notifications.
// Expiry is checked lazily on every access; the periodic sweep job only
// keeps reads cheap.
type SessionService struct {
	sessionRepo   repository.SessionRepository
	logRepo       repository.SessionLogRepository
	recordingRepo repository.RecordingRepository
	notifier      notify.Notifier
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	logRepo repository.SessionLogRepository,
	recordingRepo repository.RecordingRepository,
	notifier notify.Notifier,
) *SessionService {
	return &SessionService{
		sessionRepo:   sessionRepo,
		logRepo:       logRepo,
		recordingRepo: recordingRepo,
		notifier:      notifier,
	}
}

type CreateParams struct {
	HostUserID       string
	ExpiresInMinutes int
	AutoRecord       bool
	CalendarEventID  *string
	CalendarSource   *string
	// FromCalendar raises the expiry ceiling for calendar-originated sessions.
	FromCalendar bool
}

type CreateResult struct {
	Session *model.Session
	// Password is the plaintext one-time password. It is returned exactly
	// once; only its hash is stored.
	Password string
}

func (s *SessionService) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	maxExpiry := config.MaxSessionExpiryMinutes
	origin := "interactive"
	if params.FromCalendar {
		maxExpiry = config.MaxCalendarSessionExpiryMins
		origin = "calendar"
	}
	if params.ExpiresInMinutes < config.MinSessionExpiryMinutes || params.ExpiresInMinutes > maxExpiry {
		return nil, apperrors.InvalidInput("expiresInMinutes",
			fmt.Sprintf("must be between %d and %d", config.MinSessionExpiryMinutes, maxExpiry))
	}

	sessionID, err := util.GenerateSessionID()
	if err != nil {
		return nil, apperrors.CreateFailed(err)
	}
	password, err := util.GenerateSessionPassword()
	if err != nil {
		return nil, apperrors.CreateFailed(err)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		PasswordHash:    util.HashPassword(password),
		HostUserID:      params.HostUserID,
		AutoRecord:      params.AutoRecord,
		CalendarEventID: params.CalendarEventID,
		CalendarSource:  params.CalendarSource,
		ExpiresAt:       time.Now().Add(time.Duration(params.ExpiresInMinutes) * time.Minute),
	})
	if err != nil {
		// A unique violation on session_id is a fatal creation error, not a
		// silent retry with the same value.
		return nil, apperrors.CreateFailed(err)
	}

	s.logEvent(ctx, session, model.LogSessionCreated, map[string]any{
		"expiresAt":  session.ExpiresAt.Format(time.RFC3339),
		"autoRecord": session.AutoRecord,
	})
	metrics.SessionsCreated.WithLabelValues(origin).Inc()

	log.Info().
		Str("sessionId", session.SessionID).
		Str("hostUserId", session.HostUserID).
		Time("expiresAt", session.ExpiresAt).
		Msg("session created")

	return &CreateResult{Session: session, Password: password}, nil
}

// Get loads a session by its external id, lazily marking it expired when
// expiresAt has passed. Callers apply their own authorization.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	if !session.Status.Terminal() && time.Now().After(session.ExpiresAt) {
		if _, err := s.sessionRepo.UpdateStatus(ctx, sessionID, model.SessionStatusExpired); err != nil {
			return nil, apperrors.Database(err)
		}
		s.logEvent(ctx, session, model.LogSessionExpired, nil)
		metrics.StatusTransitions.WithLabelValues(string(model.SessionStatusExpired)).Inc()

		now := time.Now()
		session.Status = model.SessionStatusExpired
		if session.EndedAt == nil {
			session.EndedAt = &now
		}
	}

	return session, nil
}

// GetOwned is Get plus an ownership check against hostUserId.
func (s *SessionService) GetOwned(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.HostUserID != userID {
		return nil, apperrors.Unauthorized("Not the session owner")
	}
	return session, nil
}

// UpdateStatus moves a session to the given status. Setting the current
// status again is a no-op. Terminal sessions never transition again; the
// repository enforces the same guard so concurrent writers cannot revive a
// finished session.
func (s *SessionService) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) (*model.Session, error) {
	if !status.Valid() {
		return nil, apperrors.InvalidInput("status", "unknown status value")
	}

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == status {
		return session, nil
	}
	if session.Status.Terminal() {
		return nil, terminalError(session.Status)
	}

	rows, err := s.sessionRepo.UpdateStatus(ctx, sessionID, status)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if rows == 0 {
		// Lost to a concurrent terminal transition.
		current, err := s.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.Status == status {
			return current, nil
		}
		return nil, terminalError(current.Status)
	}

	now := time.Now()
	session.Status = status
	switch status {
	case model.SessionStatusConnected:
		if session.ConnectedAt == nil {
			session.ConnectedAt = &now
		}
		s.logEvent(ctx, session, model.LogHostConnected, nil)
	case model.SessionStatusDisconnected:
		if session.EndedAt == nil {
			session.EndedAt = &now
		}
		s.logEvent(ctx, session, model.LogSessionEnded, nil)
		s.sendEndNotification(ctx, session)
	case model.SessionStatusExpired:
		if session.EndedAt == nil {
			session.EndedAt = &now
		}
		s.logEvent(ctx, session, model.LogSessionExpired, nil)
	default:
		s.logEvent(ctx, session, model.LogStatusUpdated, map[string]any{"status": string(status)})
	}
	metrics.StatusTransitions.WithLabelValues(string(status)).Inc()

	return session, nil
}

// End terminates a session on behalf of its owning host. Ending an already
// disconnected session is an idempotent success; the end notification is
// dispatched at most once either way.
func (s *SessionService) End(ctx context.Context, sessionID, requestingUserID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.HostUserID != requestingUserID {
		return apperrors.Unauthorized("Not the session owner")
	}
	if session.Status == model.SessionStatusExpired {
		return apperrors.Expired()
	}
	if session.Status == model.SessionStatusDisconnected {
		s.sendEndNotification(ctx, session)
		return nil
	}

	if _, err := s.UpdateStatus(ctx, sessionID, model.SessionStatusDisconnected); err != nil {
		return err
	}

	log.Info().
		Str("sessionId", session.SessionID).
		Str("hostUserId", requestingUserID).
		Msg("session ended by host")
	return nil
}

// MarkNotificationSent flips a notification flag and reports whether this
// call was the one that set it. Duplicate calls are tolerated.
func (s *SessionService) MarkNotificationSent(ctx context.Context, sessionID string, kind model.NotificationKind) (bool, error) {
	won, err := s.sessionRepo.MarkNotificationSent(ctx, sessionID, kind)
	if err != nil {
		return false, apperrors.Database(err)
	}
	return won, nil
}

// Logs returns the audit trail of an owned session.
func (s *SessionService) Logs(ctx context.Context, sessionID, userID string) ([]model.SessionLog, error) {
	session, err := s.GetOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return logs, nil
}

// Recordings returns recording metadata for an owned session.
func (s *SessionService) Recordings(ctx context.Context, sessionID, userID string) ([]model.Recording, error) {
	session, err := s.GetOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	recordings, err := s.recordingRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return recordings, nil
}

// DeleteRecording removes recording metadata; only the owner of the
// recording's session may delete it.
func (s *SessionService) DeleteRecording(ctx context.Context, recordingID, userID string) error {
	recording, err := s.recordingRepo.FindByID(ctx, recordingID)
	if err != nil {
		return apperrors.Database(err)
	}
	if recording == nil {
		return apperrors.NotFound("Recording")
	}
	session, err := s.sessionRepo.FindByPK(ctx, recording.SessionID)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil || session.HostUserID != userID {
		return apperrors.Unauthorized("Not the recording owner")
	}
	if err := s.recordingRepo.Delete(ctx, recordingID); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (s *SessionService) sendStartNotification(ctx context.Context, session *model.Session) {
	won, err := s.sessionRepo.MarkNotificationSent(ctx, session.SessionID, model.NotificationStart)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.SessionID).Msg("mark start notification")
		return
	}
	if !won {
		return
	}
	if err := s.notifier.SessionStarted(ctx, session); err != nil {
		log.Error().Err(err).Str("sessionId", session.SessionID).Msg("send start notification")
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(model.NotificationStart)).Inc()
}

func (s *SessionService) sendEndNotification(ctx context.Context, session *model.Session) {
	won, err := s.sessionRepo.MarkNotificationSent(ctx, session.SessionID, model.NotificationEnd)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.SessionID).Msg("mark end notification")
		return
	}
	if !won {
		return
	}
	if err := s.notifier.SessionEnded(ctx, session); err != nil {
		log.Error().Err(err).Str("sessionId", session.SessionID).Msg("send end notification")
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(model.NotificationEnd)).Inc()
}

// logEvent appends one audit-trail row. A failed append is logged but never
// fails the operation that produced it.
func (s *SessionService) logEvent(ctx context.Context, session *model.Session, event model.LogEvent, detail map[string]any) {
	params := model.CreateSessionLogParams{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Event:     event,
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err == nil {
			msg := json.RawMessage(raw)
			params.Detail = &msg
		}
	}
	if err := s.logRepo.Insert(ctx, params); err != nil {
		log.Error().Err(err).
			Str("sessionId", session.SessionID).
			Str("event", string(event)).
			Msg("append session log")
	}
}

func terminalError(status model.SessionStatus) *apperrors.AppError {
	if status == model.SessionStatusExpired {
		return apperrors.Expired()
	}
	return apperrors.Ended()
}
