package factory

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/avikko/gsproxy/internal/cache"
	memorycache "github.com/avikko/gsproxy/internal/cache/memory"
	rediscache "github.com/avikko/gsproxy/internal/cache/redis"
	"github.com/avikko/gsproxy/internal/config"
	"github.com/avikko/gsproxy/internal/dependencies/clock"
	"github.com/avikko/gsproxy/internal/services/authn"
	"github.com/avikko/gsproxy/internal/services/liveness"
	"github.com/avikko/gsproxy/internal/services/maintenance"
	"github.com/avikko/gsproxy/internal/services/token"
	"github.com/avikko/gsproxy/internal/storage"
	"github.com/avikko/gsproxy/internal/storage/memory"
	"github.com/avikko/gsproxy/internal/storage/mysql"
)

// App contains all wired application components
type App struct {
	Storage  storage.Storage
	Verdicts cache.VerdictCache
	Clock    clock.Clock

	TokenValidator *token.Validator
	TokenIssuer    *token.Issuer
	Liveness       *liveness.Verifier
	Authenticator  *authn.Authenticator
	Sweeper        *maintenance.Sweeper
}

// Config holds configuration for the application factory
type Config struct {
	// Config is the resolved application configuration
	Config config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Clock overrides the wall clock (for tests)
	Clock clock.Clock
	// HTTPClient overrides the outbound HTTP client (for tests)
	HTTPClient *http.Client
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	// Storage: MySQL when a DSN is configured, in-memory otherwise
	var store storage.Storage
	if cfg.Config.DatabaseDSN != "" {
		mysqlCfg := mysql.DefaultConfig()
		mysqlCfg.DSN = cfg.Config.DatabaseDSN
		mysqlCfg.OpTimeout = cfg.Config.StorageTimeout
		s, err := mysql.New(mysqlCfg)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.New()
	}

	// Verdict cache: Redis when a URL is configured, in-process otherwise
	var verdicts cache.VerdictCache
	if cfg.Config.RedisURL != "" {
		c, err := rediscache.New(cfg.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		verdicts = c
	} else {
		verdicts = memorycache.New(clk)
	}

	secret := []byte(cfg.Config.Secret)
	validator := token.NewValidator(secret, cfg.Config.JWTIssuer, cfg.Config.JWTAudience, clk)
	issuer := token.NewIssuer(secret, cfg.Config.JWTIssuer, cfg.Config.JWTAudience)

	verifier := liveness.New(liveness.Config{
		APIKey:   cfg.Config.SteamWebAPIKey,
		GameDir:  cfg.Config.GameDir,
		CacheTTL: cfg.Config.LivenessCacheTTL,
		Timeout:  cfg.Config.LivenessTimeout,
	}, cfg.HTTPClient, verdicts, store, logger)

	authenticator := authn.New(validator, store, verifier, authn.Config{
		StorageTimeout: cfg.Config.StorageTimeout,
	}, logger)

	sweeper := maintenance.New(store, verifier, clk, maintenance.Config{
		Interval:         cfg.Config.SweepInterval,
		CredentialLeeway: cfg.Config.CredentialLeeway,
		GameRetention:    cfg.Config.GameRetention,
		RefreshInterval:  cfg.Config.RefreshInterval,
	}, logger)

	return &App{
		Storage:        store,
		Verdicts:       verdicts,
		Clock:          clk,
		TokenValidator: validator,
		TokenIssuer:    issuer,
		Liveness:       verifier,
		Authenticator:  authenticator,
		Sweeper:        sweeper,
	}, nil
}
