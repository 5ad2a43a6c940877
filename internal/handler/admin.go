package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/model"
	"github.com/remotehand/signaling-server-go/internal/repository"
)

// AdminHandler exposes operator stats behind basic auth.
type AdminHandler struct {
	sessionRepo repository.SessionRepository
	adminAuth   func(http.Handler) http.Handler
}

func NewAdminHandler(sessionRepo repository.SessionRepository, adminAuth func(http.Handler) http.Handler) *AdminHandler {
	return &AdminHandler{sessionRepo: sessionRepo, adminAuth: adminAuth}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Get("/stats", h.Stats)
	})

	return r
}

// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.sessionRepo.CountByStatus(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to count sessions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	byStatus := map[model.SessionStatus]int64{}
	var total int64
	for _, c := range counts {
		byStatus[c.Status] = c.Count
		total += c.Count
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": map[string]any{
			"total":    total,
			"byStatus": byStatus,
		},
	})
}
