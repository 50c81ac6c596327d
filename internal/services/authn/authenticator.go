package authn

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/netip"
	"time"

	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/services/liveness"
	"github.com/avikko/gsproxy/internal/services/token"
	"github.com/avikko/gsproxy/internal/storage"
)

// Config holds configuration for the authenticator
type Config struct {
	// StorageTimeout bounds the credential lookup
	StorageTimeout time.Duration
}

// DefaultConfig returns sensible defaults for authenticator configuration
func DefaultConfig() Config {
	return Config{
		StorageTimeout: 5 * time.Second,
	}
}

// Authenticator is the single entry point every request passes through. It
// chains token validation, source-address binding, stored-digest comparison
// and the liveness check into one accept/reject decision.
type Authenticator struct {
	tokens   *token.Validator
	store    storage.Storage
	liveness *liveness.Verifier
	cfg      Config
	logger   *slog.Logger
}

// New creates a new Authenticator
func New(tokens *token.Validator, store storage.Storage, verifier *liveness.Verifier, cfg Config, logger *slog.Logger) *Authenticator {
	if cfg.StorageTimeout == 0 {
		cfg.StorageTimeout = DefaultConfig().StorageTimeout
	}
	return &Authenticator{
		tokens:   tokens,
		store:    store,
		liveness: verifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Authenticate runs the full pipeline for one request. The steps run
// strictly in order and the first failure wins. Every rejection returns
// model.ErrUnauthenticated; the failing step is only distinguishable in the
// debug log, so a hostile caller learns nothing from the response.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string, remoteAddr netip.Addr) (model.Identity, error) {
	if rawToken == "" {
		a.logger.Debug("authentication failed: no token")
		return model.Identity{}, model.ErrUnauthenticated
	}

	id, err := a.tokens.Validate(rawToken)
	if err != nil {
		a.logger.Debug("authentication failed: token validation")
		return model.Identity{}, model.ErrUnauthenticated
	}

	// Source binding: the request must physically arrive from the claimed
	// address. Weak without transport encryption, but it stops a stolen
	// token being replayed from elsewhere.
	if remoteAddr != id.Address {
		a.logger.Debug("authentication failed: source address mismatch",
			slog.String("claimed", id.String()),
			slog.String("remote", remoteAddr.String()))
		return model.Identity{}, model.ErrUnauthenticated
	}

	if err := a.verifySecret(ctx, rawToken, id); err != nil {
		return model.Identity{}, err
	}

	if !a.liveness.Enabled() {
		a.logger.Warn("liveness API key is not set, unable to verify game server registration",
			slog.String("claimed", id.String()))
	} else if !a.liveness.Verify(ctx, id.Address, id.Port) {
		a.logger.Debug("authentication failed: server not found in listing service",
			slog.String("claimed", id.String()))
		return model.Identity{}, model.ErrUnauthenticated
	}

	return id, nil
}

// verifySecret compares the presented token's digest against every stored
// credential for the claimed server. A storage failure counts as no
// credential (fail closed); both surface as ErrCredentialNotFound, which
// wraps ErrUnauthenticated. All rows are compared in constant time with no
// early exit, so neither row order nor byte position leaks through timing.
func (a *Authenticator) verifySecret(ctx context.Context, rawToken string, id model.Identity) error {
	digest := sha256.Sum256([]byte(rawToken))

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StorageTimeout)
	defer cancel()

	creds, err := a.store.CredentialsForServer(ctx, id.Address, id.Port)
	if err != nil {
		a.logger.Debug("authentication failed: credential lookup error",
			slog.String("claimed", id.String()),
			slog.String("error", err.Error()))
		return model.ErrCredentialNotFound
	}
	if len(creds) == 0 {
		a.logger.Debug("authentication failed: no stored credential",
			slog.String("claimed", id.String()))
		return model.ErrCredentialNotFound
	}

	matched := 0
	for _, cred := range creds {
		if len(cred.TokenHash) != sha256.Size {
			continue
		}
		matched |= subtle.ConstantTimeCompare(digest[:], cred.TokenHash)
	}
	if matched != 1 {
		a.logger.Debug("authentication failed: stored digest mismatch",
			slog.String("claimed", id.String()))
		return model.ErrUnauthenticated
	}
	return nil
}
