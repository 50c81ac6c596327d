package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avikko/gsproxy/internal/api/apierr"
	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/storage"
)

// GameOwner creates middleware that binds the verified identity to ownership
// of the game named in the route. The game is loaded once, checked against
// the identity, and attached to the request context so handlers do not
// re-fetch it. A missing game is a 404; a game owned by a different server
// is a 403; a missing identity should be unreachable when composed after
// Authenticate, but rejects defensively.
func GameOwner(store storage.Storage, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				logger.Debug("ownership check without verified identity",
					slog.String("path", r.URL.Path))
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			gameID := model.GameID(mux.Vars(r)["game_id"])
			game, err := store.GetGame(r.Context(), gameID)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			if !identity.Owns(game) {
				logger.Debug("ownership check failed",
					slog.String("game_id", string(gameID)),
					slog.String("identity", identity.String()),
					slog.String("owner", game.GameServerAddress.String()),
					slog.Int("owner_port", game.GameServerPort))
				apierr.WriteError(w, model.ErrNotGameOwner)
				return
			}

			ctx := context.WithValue(r.Context(), gameContextKey, game)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
