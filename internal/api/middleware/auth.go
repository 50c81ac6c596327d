package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/avikko/gsproxy/internal/api/apierr"
	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/services/authn"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	gameContextKey     contextKey = "game"
)

// Authenticate creates authentication middleware. Every request passes
// through the full authentication pipeline; on success the verified identity
// is attached to the request context.
func Authenticate(auth *authn.Authenticator, trustedProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)

			remote, ok := remoteAddr(r, trustedProxy)
			if !ok {
				logger.Debug("could not determine request source address",
					slog.String("remote_addr", r.RemoteAddr))
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			identity, err := auth.Authenticate(r.Context(), token, remote)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// remoteAddr resolves the address the request physically arrived from.
// X-Forwarded-For is honored only when the deployment declares a trusted
// reverse proxy in front of the server; its first entry is the client.
func remoteAddr(r *http.Request, trustedProxy bool) (netip.Addr, bool) {
	if trustedProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			addr, err := netip.ParseAddr(strings.TrimSpace(first))
			if err == nil {
				return addr.Unmap(), true
			}
			return netip.Addr{}, false
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// IdentityFrom returns the verified identity from the request context
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

// GameFrom returns the owner-checked game from the request context
func GameFrom(ctx context.Context) (*model.Game, bool) {
	game, ok := ctx.Value(gameContextKey).(*model.Game)
	return game, ok
}
