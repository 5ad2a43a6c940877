package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/audit"
	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/middleware"
	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/service"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// SessionHandler serves the authenticated host API: session lifecycle,
// audit trail and recording metadata.
type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{sessionId}", h.Get)
	r.Post("/{sessionId}/end", h.End)
	r.Get("/{sessionId}/logs", h.Logs)
	r.Get("/{sessionId}/recordings", h.Recordings)

	return r
}

// POST /api/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	var req struct {
		ExpiresInMinutes int     `json:"expiresInMinutes"`
		AutoRecord       bool    `json:"autoRecord"`
		CalendarEventID  *string `json:"calendarEventId"`
		CalendarSource   *string `json:"calendarSource"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.sessions.Create(r.Context(), service.CreateParams{
		HostUserID:       user.ID,
		ExpiresInMinutes: req.ExpiresInMinutes,
		AutoRecord:       req.AutoRecord,
		CalendarEventID:  req.CalendarEventID,
		CalendarSource:   req.CalendarSource,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionCreate,
		UserID:    user.ID,
		SessionID: result.Session.SessionID,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId":  result.Session.SessionID,
		"password":   result.Password,
		"status":     result.Session.Status,
		"autoRecord": result.Session.AutoRecord,
		"createdAt":  result.Session.CreatedAt.Format(time.RFC3339),
		"expiresAt":  result.Session.ExpiresAt.Format(time.RFC3339),
	})
}

// GET /api/sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := h.ownedRequest(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.GetOwned(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatSession(session))
}

// POST /api/sessions/{sessionId}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := h.ownedRequest(w, r)
	if !ok {
		return
	}

	if err := h.sessions.End(r.Context(), sessionID, user.ID); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionEnd,
		UserID:    user.ID,
		SessionID: sessionID,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/sessions/{sessionId}/logs
func (h *SessionHandler) Logs(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := h.ownedRequest(w, r)
	if !ok {
		return
	}

	logs, err := h.sessions.Logs(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(logs))
	for i, entry := range logs {
		formatted[i] = map[string]any{
			"event":     entry.Event,
			"detail":    entry.Detail,
			"createdAt": entry.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  formatted,
		"total": len(logs),
	})
}

// GET /api/sessions/{sessionId}/recordings
func (h *SessionHandler) Recordings(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := h.ownedRequest(w, r)
	if !ok {
		return
	}

	recordings, err := h.sessions.Recordings(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(recordings))
	for i, rec := range recordings {
		formatted[i] = map[string]any{
			"recordingId": rec.ID,
			"fileName":    rec.FileName,
			"sizeBytes":   rec.SizeBytes,
			"createdAt":   rec.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recordings": formatted,
		"total":      len(recordings),
	})
}

// DELETE /api/recordings/{recordingId}
func (h *SessionHandler) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	recordingID := chi.URLParam(r, "recordingId")
	if err := h.sessions.DeleteRecording(r.Context(), recordingID, user.ID); err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
			audit.LogFromRequest(r, audit.Event{
				Type:   audit.EventOwnershipDenied,
				UserID: user.ID,
			})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventRecordingDelete,
		UserID: user.ID,
		Details: map[string]interface{}{
			"recordingId": recordingID,
		},
	})

	log.Info().
		Str("recordingId", recordingID).
		Str("hostUserId", user.ID).
		Msg("recording deleted")

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *SessionHandler) ownedRequest(w http.ResponseWriter, r *http.Request) (*model.User, string, bool) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return nil, "", false
	}
	sessionID := chi.URLParam(r, "sessionId")
	if !util.IsValidSessionID(sessionID) {
		writeError(w, apperrors.NotFound("Session"))
		return nil, "", false
	}
	return user, sessionID, true
}

// formatSession is the owner's view of the row. Signaling payloads are
// served by the signaling routes and stay out of it, as does the hash.
func formatSession(session *model.Session) map[string]any {
	return map[string]any{
		"sessionId":       session.SessionID,
		"status":          session.Status,
		"hostUserId":      session.HostUserID,
		"clientName":      session.ClientName,
		"autoRecord":      session.AutoRecord,
		"calendarEventId": session.CalendarEventID,
		"calendarSource":  session.CalendarSource,
		"createdAt":       session.CreatedAt.Format(time.RFC3339),
		"expiresAt":       session.ExpiresAt.Format(time.RFC3339),
		"connectedAt":     formatTime(session.ConnectedAt),
		"endedAt":         formatTime(session.EndedAt),
	}
}
