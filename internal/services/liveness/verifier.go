package liveness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/avikko/gsproxy/internal/cache"
	"github.com/avikko/gsproxy/internal/storage"
)

// DefaultServerListURL is the Steam Web API endpoint listing currently
// registered game servers
const DefaultServerListURL = "https://api.steampowered.com/IGameServersService/GetServerList/v1/"

// Config holds configuration for the liveness verifier
type Config struct {
	// APIKey is the Steam Web API key. An empty key disables the verifier:
	// callers must skip the check and proceed as if it passed.
	APIKey string
	// GameDir filters the server list to one game type
	GameDir string
	// ServerListURL overrides the listing endpoint (for tests)
	ServerListURL string
	// CacheTTL is how long a positive verdict stays cached
	CacheTTL time.Duration
	// Timeout bounds the outbound listing call
	Timeout time.Duration
	// CounterTimeout bounds the fire-and-forget usage counter write
	CounterTimeout time.Duration
}

// DefaultConfig returns sensible defaults for liveness configuration
func DefaultConfig() Config {
	return Config{
		GameDir:        "rs2",
		ServerListURL:  DefaultServerListURL,
		CacheTTL:       60 * time.Minute,
		Timeout:        30 * time.Second,
		CounterTimeout: 5 * time.Second,
	}
}

// Verifier confirms that a claimed (address, port) currently corresponds to
// a real, registered game server. The API key is fixed at construction;
// reloading the key means constructing a new Verifier, never mutating a
// shared one.
type Verifier struct {
	cfg    Config
	client *http.Client
	cache  cache.VerdictCache
	store  storage.Storage
	logger *slog.Logger
}

// New creates a new Verifier
func New(cfg Config, client *http.Client, verdicts cache.VerdictCache, store storage.Storage, logger *slog.Logger) *Verifier {
	if cfg.GameDir == "" {
		cfg.GameDir = DefaultConfig().GameDir
	}
	if cfg.ServerListURL == "" {
		cfg.ServerListURL = DefaultServerListURL
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.CounterTimeout == 0 {
		cfg.CounterTimeout = DefaultConfig().CounterTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Verifier{
		cfg:    cfg,
		client: client,
		cache:  verdicts,
		store:  store,
		logger: logger,
	}
}

// Enabled reports whether an API key is configured. When false, callers skip
// the liveness step entirely.
func (v *Verifier) Enabled() bool {
	return v.cfg.APIKey != ""
}

// Verify reports whether the pair is a currently registered game server.
// A cached positive verdict short-circuits the network call. Failures of any
// kind (transport, status, response shape) are negative verdicts, never
// errors, and negative verdicts are never cached.
func (v *Verifier) Verify(ctx context.Context, addr netip.Addr, port int) bool {
	cached, err := v.cache.Get(ctx, addr, port)
	if err != nil {
		v.logger.Debug("verdict cache read failed",
			slog.String("server", fmt.Sprintf("%s:%d", addr, port)),
			slog.String("error", err.Error()))
	} else if cached {
		return true
	}

	ok := v.probe(ctx, addr, port)
	if !ok {
		return false
	}

	if err := v.cache.Put(ctx, addr, port, v.cfg.CacheTTL); err != nil {
		v.logger.Debug("verdict cache write failed",
			slog.String("server", fmt.Sprintf("%s:%d", addr, port)),
			slog.String("error", err.Error()))
	}
	return true
}

// probe performs one outbound listing query
func (v *Verifier) probe(ctx context.Context, addr netip.Addr, port int) bool {
	// Count the outbound query without blocking or affecting the verdict
	go v.countQuery()

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.ServerListURL, nil)
	if err != nil {
		v.logger.Debug("building server list request failed", slog.String("error", err.Error()))
		return false
	}

	q := url.Values{}
	q.Set("key", v.cfg.APIKey)
	q.Set("filter", fmt.Sprintf(`\gamedir\%s\gameaddr\%s:%d`, v.cfg.GameDir, addr, port))
	req.URL.RawQuery = q.Encode()

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("server list request failed",
			slog.String("server", fmt.Sprintf("%s:%d", addr, port)),
			slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.Debug("server list request returned non-2xx status",
			slog.String("server", fmt.Sprintf("%s:%d", addr, port)),
			slog.Int("status", resp.StatusCode))
		return false
	}

	var payload struct {
		Response struct {
			Servers []json.RawMessage `json:"servers"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		v.logger.Debug("decoding server list response failed",
			slog.String("server", fmt.Sprintf("%s:%d", addr, port)),
			slog.String("error", err.Error()))
		return false
	}

	if len(payload.Response.Servers) == 0 {
		v.logger.Debug("server list returned no servers",
			slog.String("server", fmt.Sprintf("%s:%d", addr, port)))
		return false
	}
	return true
}

// countQuery increments the usage counter on its own context so a slow or
// failing store never delays a verdict
func (v *Verifier) countQuery() {
	ctx, cancel := context.WithTimeout(context.Background(), v.cfg.CounterTimeout)
	defer cancel()

	if err := v.store.IncrementLivenessQueries(ctx); err != nil {
		v.logger.Debug("incrementing liveness query counter failed",
			slog.String("error", err.Error()))
	}
}
