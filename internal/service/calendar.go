package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/repository"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// apiKeyLabel is the fixed derivation label for the add-on API key. The
// add-on derives HMAC-SHA256(secret, label) on its side; rotating the
// secret rotates the key.
const apiKeyLabel = "calendar-addon"

// CalendarService lets a calendar add-on create support meetings on behalf
// of a registered host, authenticated by a shared-secret derived API key
// rather than the host's own token.
type CalendarService struct {
	userRepo repository.UserRepository
	sessions *SessionService
	secret   string
	baseURL  string
}

func NewCalendarService(userRepo repository.UserRepository, sessions *SessionService, secret, baseURL string) *CalendarService {
	return &CalendarService{
		userRepo: userRepo,
		sessions: sessions,
		secret:   secret,
		baseURL:  baseURL,
	}
}

type CreateMeetingParams struct {
	APIKey           string
	HostEmail        string
	ExpiresInMinutes int
	CalendarEventID  *string
	CalendarSource   *string
}

type MeetingResult struct {
	SessionID string `json:"sessionId"`
	Password  string `json:"password"`
	JoinURL   string `json:"joinUrl"`
	HostURL   string `json:"hostUrl"`
	ExpiresAt string `json:"expiresAt"`
}

type MeetingStatus struct {
	SessionID   string              `json:"sessionId"`
	Status      model.SessionStatus `json:"status"`
	ClientName  *string             `json:"clientName"`
	CreatedAt   string              `json:"createdAt"`
	ConnectedAt *string             `json:"connectedAt"`
	EndedAt     *string             `json:"endedAt"`
	ExpiresAt   string              `json:"expiresAt"`
}

// APIKey returns the key the add-on must present. The add-on holds the same
// secret and derives the same value; no key table exists.
func (s *CalendarService) APIKey() string {
	return util.HmacSHA256(s.secret, apiKeyLabel)
}

// verifyKey runs in constant time and always before any store access, so a
// bad key learns nothing about which hosts or sessions exist.
func (s *CalendarService) verifyKey(apiKey string) error {
	if s.secret == "" {
		return apperrors.InvalidKey()
	}
	if !util.ConstantTimeEqual(apiKey, s.APIKey()) {
		return apperrors.InvalidKey()
	}
	return nil
}

// CreateMeeting resolves the host by email and creates a session with
// calendar provenance, returning ready-to-embed join and host URLs.
func (s *CalendarService) CreateMeeting(ctx context.Context, params CreateMeetingParams) (*MeetingResult, error) {
	if err := s.verifyKey(params.APIKey); err != nil {
		return nil, err
	}
	if params.HostEmail == "" {
		return nil, apperrors.MissingRequired("hostEmail")
	}
	if !util.IsValidEmail(params.HostEmail) {
		return nil, apperrors.InvalidInput("hostEmail", "not a valid email address")
	}

	host, err := s.userRepo.FindByEmail(ctx, params.HostEmail)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if host == nil {
		return nil, apperrors.HostNotFound(params.HostEmail)
	}

	result, err := s.sessions.Create(ctx, CreateParams{
		HostUserID:       host.ID,
		ExpiresInMinutes: params.ExpiresInMinutes,
		CalendarEventID:  params.CalendarEventID,
		CalendarSource:   params.CalendarSource,
		FromCalendar:     true,
	})
	if err != nil {
		return nil, err
	}
	session := result.Session

	log.Info().
		Str("sessionId", session.SessionID).
		Str("hostUserId", host.ID).
		Msg("calendar meeting created")

	return &MeetingResult{
		SessionID: session.SessionID,
		Password:  result.Password,
		JoinURL:   fmt.Sprintf("%s/join/%s?p=%s", s.baseURL, session.SessionID, result.Password),
		HostURL:   fmt.Sprintf("%s/viewer/%s", s.baseURL, session.SessionID),
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// Status returns the meeting's lifecycle view for the add-on's card:
// status and timestamps, never the password or signaling payloads.
func (s *CalendarService) Status(ctx context.Context, apiKey, sessionID string) (*MeetingStatus, error) {
	if err := s.verifyKey(apiKey); err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &MeetingStatus{
		SessionID:   session.SessionID,
		Status:      session.Status,
		ClientName:  session.ClientName,
		CreatedAt:   session.CreatedAt.Format(time.RFC3339),
		ConnectedAt: formatTimestamp(session.ConnectedAt),
		EndedAt:     formatTimestamp(session.EndedAt),
		ExpiresAt:   session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
