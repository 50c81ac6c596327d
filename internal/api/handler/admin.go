package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/avikko/gsproxy/internal/api/apierr"
	"github.com/avikko/gsproxy/internal/api/response"
	"github.com/avikko/gsproxy/internal/cache"
)

// AdminHandler handles operational endpoints. These sit outside the game
// server authentication pipeline and are guarded by a separate shared
// secret, stored only as a bcrypt hash.
type AdminHandler struct {
	verdicts   cache.VerdictCache
	secretHash []byte
	logger     *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(verdicts cache.VerdictCache, secretHash string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		verdicts:   verdicts,
		secretHash: []byte(secretHash),
		logger:     logger,
	}
}

// ClearCache handles POST /api/v1/admin/cache/clear
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}

	if err := h.verdicts.Clear(r.Context()); err != nil {
		h.logger.Error("clearing verdict cache failed", slog.String("error", err.Error()))
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	h.logger.Info("verdict cache cleared by admin request")
	response.NoContent(w)
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	secret, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(h.secretHash, []byte(secret)) == nil
}
