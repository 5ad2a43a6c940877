package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remotehand/signaling-server-go/internal/audit"
	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/service"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// defaultMeetingExpiryMinutes applies when the add-on omits the field;
// a calendar slot is typically an hour.
const defaultMeetingExpiryMinutes = 60

// CalendarHandler serves the calendar add-on bridge. Authentication is the
// derived API key carried in the request itself, not a bearer token.
type CalendarHandler struct {
	calendar *service.CalendarService
}

func NewCalendarHandler(calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

func (h *CalendarHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/meetings", h.CreateMeeting)
	r.Get("/meetings/{sessionId}", h.MeetingStatus)

	return r
}

// POST /api/calendar/meetings
func (h *CalendarHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey           string  `json:"apiKey"`
		HostEmail        string  `json:"hostEmail"`
		ExpiresInMinutes int     `json:"expiresInMinutes"`
		CalendarEventID  *string `json:"calendarEventId"`
		CalendarSource   *string `json:"calendarSource"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.ExpiresInMinutes == 0 {
		req.ExpiresInMinutes = defaultMeetingExpiryMinutes
	}

	result, err := h.calendar.CreateMeeting(r.Context(), service.CreateMeetingParams{
		APIKey:           req.APIKey,
		HostEmail:        req.HostEmail,
		ExpiresInMinutes: req.ExpiresInMinutes,
		CalendarEventID:  req.CalendarEventID,
		CalendarSource:   req.CalendarSource,
	})
	if err != nil {
		h.denied(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventCalendarMeetingNew,
		SessionID: result.SessionID,
	})

	writeJSON(w, http.StatusCreated, result)
}

// GET /api/calendar/meetings/{sessionId}?apiKey=
func (h *CalendarHandler) MeetingStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if !util.IsValidSessionID(sessionID) {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	status, err := h.calendar.Status(r.Context(), r.URL.Query().Get("apiKey"), sessionID)
	if err != nil {
		h.denied(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *CalendarHandler) denied(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.GetCode(err) == apperrors.ErrCodeInvalidKey {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventInvalidAPIKey})
	}
	writeError(w, err)
}
