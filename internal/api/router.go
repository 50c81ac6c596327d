package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avikko/gsproxy/internal/api/handler"
	"github.com/avikko/gsproxy/internal/api/middleware"
	"github.com/avikko/gsproxy/internal/cache"
	"github.com/avikko/gsproxy/internal/dependencies/clock"
	"github.com/avikko/gsproxy/internal/services/authn"
	"github.com/avikko/gsproxy/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger        *slog.Logger
	Authenticator *authn.Authenticator
	Storage       storage.Storage
	Verdicts      cache.VerdictCache
	Clock         clock.Clock
	// TrustedProxy enables X-Forwarded-For resolution for the source
	// binding check
	TrustedProxy bool
	// AdminSecretHash is a bcrypt hash guarding the admin routes; empty
	// leaves them unregistered
	AdminSecretHash string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	gameHandler := handler.NewGameHandler(cfg.Storage, cfg.Clock)

	authMiddleware := middleware.Authenticate(cfg.Authenticator, cfg.TrustedProxy, cfg.Logger)
	ownerMiddleware := middleware.GameOwner(cfg.Storage, cfg.Logger)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Game routes: everything authenticated, per-game routes additionally
	// ownership-guarded
	games := api.PathPrefix("/games").Subrouter()
	games.Use(authMiddleware)
	games.HandleFunc("", gameHandler.Create).Methods(http.MethodPost)

	owned := games.PathPrefix("/{game_id}").Subrouter()
	owned.Use(ownerMiddleware)
	owned.HandleFunc("", gameHandler.Get).Methods(http.MethodGet)
	owned.HandleFunc("/stop", gameHandler.Stop).Methods(http.MethodPost)
	owned.HandleFunc("/chat", gameHandler.Chat).Methods(http.MethodPost)
	owned.HandleFunc("/kills", gameHandler.Kill).Methods(http.MethodPost)

	// Admin routes, only when a secret hash is provisioned
	if cfg.AdminSecretHash != "" {
		adminHandler := handler.NewAdminHandler(cfg.Verdicts, cfg.AdminSecretHash, cfg.Logger)
		admin := api.PathPrefix("/admin").Subrouter()
		admin.HandleFunc("/cache/clear", adminHandler.ClearCache).Methods(http.MethodPost)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
