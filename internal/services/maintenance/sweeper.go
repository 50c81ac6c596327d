package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/avikko/gsproxy/internal/dependencies/clock"
	"github.com/avikko/gsproxy/internal/services/liveness"
	"github.com/avikko/gsproxy/internal/storage"
)

// Config holds configuration for the maintenance sweeper
type Config struct {
	// Interval between sweep passes
	Interval time.Duration
	// CredentialLeeway keeps expired credentials around a little longer so
	// a server mid-handshake is not cut off at the exact expiry instant
	CredentialLeeway time.Duration
	// GameRetention is how long finished games are kept
	GameRetention time.Duration
	// RefreshInterval is how often the liveness verdict cache is re-warmed
	// for every provisioned server
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults for sweeper configuration
func DefaultConfig() Config {
	return Config{
		Interval:         10 * time.Minute,
		CredentialLeeway: 5 * time.Minute,
		GameRetention:    24 * time.Hour,
		RefreshInterval:  30 * time.Minute,
	}
}

// Sweeper runs the background maintenance passes: removing expired
// credentials and old finished games, and keeping the liveness verdict cache
// warm so a request rarely pays for an inline listing probe after a cached
// verdict expires. Retries belong here, on the next pass, never on the
// request path.
type Sweeper struct {
	store    storage.Storage
	verifier *liveness.Verifier
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
}

// New creates a new Sweeper. verifier may be nil when liveness checking is
// not wired at all; a constructed-but-disabled verifier also skips refresh.
func New(store storage.Storage, verifier *liveness.Verifier, clk clock.Clock, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.CredentialLeeway == 0 {
		cfg.CredentialLeeway = DefaultConfig().CredentialLeeway
	}
	if cfg.GameRetention == 0 {
		cfg.GameRetention = DefaultConfig().GameRetention
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}
	return &Sweeper{
		store:    store,
		verifier: verifier,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run sweeps and refreshes on their configured intervals until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	sweep := time.NewTicker(s.cfg.Interval)
	defer sweep.Stop()
	refresh := time.NewTicker(s.cfg.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			s.SweepOnce(ctx)
		case <-refresh.C:
			s.RefreshOnce(ctx)
		}
	}
}

// SweepOnce runs a single maintenance pass. Failures are logged and left for
// the next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (credentials, games int64) {
	now := s.clock.Now()

	credentials, err := s.store.DeleteExpiredCredentials(ctx, now, s.cfg.CredentialLeeway)
	if err != nil {
		s.logger.Error("credential sweep failed", slog.String("error", err.Error()))
	}

	games, err = s.store.DeleteFinishedGames(ctx, now, s.cfg.GameRetention)
	if err != nil {
		s.logger.Error("game sweep failed", slog.String("error", err.Error()))
	}

	s.logger.Info("maintenance sweep complete",
		slog.Int64("credentials_removed", credentials),
		slog.Int64("games_removed", games),
	)
	return credentials, games
}

// RefreshOnce re-verifies every provisioned server once, through the verdict
// cache, so entries expiring between passes are re-probed here instead of on
// a request. Returns the number of servers checked.
func (s *Sweeper) RefreshOnce(ctx context.Context) int {
	if s.verifier == nil || !s.verifier.Enabled() {
		return 0
	}

	servers, err := s.store.CredentialServers(ctx)
	if err != nil {
		s.logger.Error("listing servers for cache refresh failed", slog.String("error", err.Error()))
		return 0
	}

	live := 0
	for _, srv := range servers {
		if s.verifier.Verify(ctx, srv.Address, srv.Port) {
			live++
		}
	}

	s.logger.Info("liveness cache refresh complete",
		slog.Int("servers", len(servers)),
		slog.Int("live", live),
	)
	return len(servers)
}
