package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remotehand/signaling-server-go/internal/audit"
	apperrors "github.com/remotehand/signaling-server-go/internal/errors"
	"github.com/remotehand/signaling-server-go/internal/middleware"
	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/service"
	"github.com/remotehand/signaling-server-go/internal/util"
)

// SignalingHandler serves the offer/answer/ICE relay routes. The route
// group runs behind optional auth: host calls carry a bearer token, client
// calls carry the session password, and a few flow-B routes are public by
// design.
type SignalingHandler struct {
	signaling   *service.SignalingService
	joinLimit   func(http.Handler) http.Handler
	signalLimit func(http.Handler) http.Handler
}

func NewSignalingHandler(
	signaling *service.SignalingService,
	joinLimit func(http.Handler) http.Handler,
	signalLimit func(http.Handler) http.Handler,
) *SignalingHandler {
	return &SignalingHandler{
		signaling:   signaling,
		joinLimit:   joinLimit,
		signalLimit: signalLimit,
	}
}

func (h *SignalingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Join carries a tighter limit than the polling routes: it is the
	// password-guessing surface.
	r.With(h.joinLimit).Post("/{sessionId}/join", h.Join)

	r.Group(func(r chi.Router) {
		r.Use(h.signalLimit)
		r.Get("/{sessionId}", h.Data)
		r.Post("/{sessionId}/offer", h.SendOffer)
		r.Post("/{sessionId}/answer", h.SendAnswer)
		r.Post("/{sessionId}/ice", h.SendICECandidate)
		r.Post("/{sessionId}/client-offer", h.SendOfferFromClient)
		r.Get("/{sessionId}/client-offer", h.Offer)
		r.Post("/{sessionId}/host-answer", h.SendAnswerFromHost)
		r.Get("/{sessionId}/host-answer", h.Answer)
		r.Post("/{sessionId}/disconnect", h.Disconnect)
	})

	return r
}

// POST /api/signaling/{sessionId}/join
func (h *SignalingHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Password   string `json:"password"`
		ClientName string `json:"clientName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Password == "" {
		writeError(w, apperrors.MissingRequired("password"))
		return
	}
	if req.ClientName == "" {
		req.ClientName = "Guest"
	}

	result, err := h.signaling.Join(r.Context(), sessionID, req.Password, req.ClientName, audit.ClientIP(r))
	if err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/signaling/{sessionId}/offer
func (h *SignalingHandler) SendOffer(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := hostRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Offer string `json:"offer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.signaling.SendOffer(r.Context(), sessionID, user.ID, req.Offer); err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /api/signaling/{sessionId}/answer
func (h *SignalingHandler) SendAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password"`
		Answer   string `json:"answer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.signaling.SendAnswer(r.Context(), sessionID, req.Password, req.Answer); err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /api/signaling/{sessionId}/ice
func (h *SignalingHandler) SendICECandidate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		From      model.SignalingRole `json:"from"`
		Candidate string              `json:"candidate"`
		Password  string              `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	hostUserID := ""
	if user := middleware.GetUser(r.Context()); user != nil {
		hostUserID = user.ID
	}

	if err := h.signaling.SendICECandidate(r.Context(), sessionID, req.From, req.Candidate, req.Password, hostUserID); err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/signaling/{sessionId}?role=&p=
func (h *SignalingHandler) Data(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	role := model.SignalingRole(r.URL.Query().Get("role"))
	password := r.URL.Query().Get("p")

	hostUserID := ""
	if user := middleware.GetUser(r.Context()); user != nil {
		hostUserID = user.ID
	}

	data, err := h.signaling.Data(r.Context(), sessionID, role, password, hostUserID)
	if err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// POST /api/signaling/{sessionId}/client-offer
func (h *SignalingHandler) SendOfferFromClient(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Offer         string   `json:"offer"`
		ICECandidates []string `json:"iceCandidates"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.signaling.SendOfferFromClient(r.Context(), sessionID, req.Offer, req.ICECandidates); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/signaling/{sessionId}/client-offer
func (h *SignalingHandler) Offer(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := hostRequest(w, r)
	if !ok {
		return
	}

	result, err := h.signaling.Offer(r.Context(), sessionID, user.ID)
	if err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/signaling/{sessionId}/host-answer
func (h *SignalingHandler) SendAnswerFromHost(w http.ResponseWriter, r *http.Request) {
	user, sessionID, ok := hostRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Answer        string   `json:"answer"`
		ICECandidates []string `json:"iceCandidates"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.signaling.SendAnswerFromHost(r.Context(), sessionID, user.ID, req.Answer, req.ICECandidates); err != nil {
		h.denied(w, r, sessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/signaling/{sessionId}/host-answer
func (h *SignalingHandler) Answer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.signaling.Answer(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/signaling/{sessionId}/disconnect
func (h *SignalingHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.signaling.ClientDisconnect(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// denied writes the error and records security-relevant denials in the
// audit log.
func (h *SignalingHandler) denied(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidPassword:
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventInvalidPassword,
			SessionID: sessionID,
		})
	case apperrors.ErrCodeUnauthorized:
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventOwnershipDenied,
			SessionID: sessionID,
		})
	}
	writeError(w, err)
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "sessionId")
	if !util.IsValidSessionID(sessionID) {
		// Malformed ids behave like missing ones.
		writeError(w, apperrors.NotFound("Session"))
		return "", false
	}
	return sessionID, true
}

func hostRequest(w http.ResponseWriter, r *http.Request) (*model.User, string, bool) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return nil, "", false
	}
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return nil, "", false
	}
	return user, sessionID, true
}
