package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/avikko/gsproxy/internal/api/response"
	cachememory "github.com/avikko/gsproxy/internal/cache/memory"
	"github.com/avikko/gsproxy/internal/dependencies/mocks"
	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/services/authn"
	"github.com/avikko/gsproxy/internal/services/liveness"
	"github.com/avikko/gsproxy/internal/services/token"
	storagememory "github.com/avikko/gsproxy/internal/storage/memory"
	"github.com/avikko/gsproxy/internal/testutil"
)

var testSecret = []byte("test-signing-secret")

const adminSecret = "admin-secret"

// APISuite exercises the full HTTP surface: router, middleware chain,
// handlers and the in-memory backends behind them
type APISuite struct {
	suite.Suite
	clock   *mocks.MockClock
	storage *storagememory.Storage
	cache   *cachememory.Cache
	issuer  *token.Issuer
	router  http.Handler
	ctx     context.Context

	listServer *httptest.Server
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = storagememory.New()
	s.cache = cachememory.New(s.clock)
	s.issuer = token.NewIssuer(testSecret, "GSProxy", "GSProxy")
	s.ctx = context.Background()

	// Listing service that reports every queried server as registered
	s.listServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"servers":[{"addr":"host"}]}}`))
	}))

	s.router = s.newRouter(false, s.adminHash())
}

func (s *APISuite) TearDownTest() {
	s.listServer.Close()
}

func (s *APISuite) adminHash() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminSecret), bcrypt.MinCost)
	s.Require().NoError(err)
	return string(hash)
}

func (s *APISuite) newRouter(trustedProxy bool, adminSecretHash string) http.Handler {
	logger := testutil.NopLogger()

	validator := token.NewValidator(testSecret, "GSProxy", "GSProxy", s.clock)

	livenessCfg := liveness.DefaultConfig()
	livenessCfg.APIKey = "test-api-key"
	livenessCfg.ServerListURL = s.listServer.URL
	verifier := liveness.New(livenessCfg, s.listServer.Client(), s.cache, s.storage, logger)

	authenticator := authn.New(validator, s.storage, verifier, authn.DefaultConfig(), logger)

	return NewRouter(RouterConfig{
		Logger:          logger,
		Authenticator:   authenticator,
		Storage:         s.storage,
		Verdicts:        s.cache,
		Clock:           s.clock,
		TrustedProxy:    trustedProxy,
		AdminSecretHash: adminSecretHash,
	})
}

// provision issues a token for the pair and stores its credential, as the
// keygen command would
func (s *APISuite) provision(addr string, port int) string {
	parsed := netip.MustParseAddr(addr)
	signed, digest, err := s.issuer.Issue(parsed, port, s.clock.Now(), s.clock.Now().Add(time.Hour))
	s.Require().NoError(err)

	s.Require().NoError(s.storage.SaveCredential(s.ctx, &model.Credential{
		GameServerAddress: parsed,
		GameServerPort:    port,
		TokenHash:         digest[:],
		CreatedAt:         s.clock.Now(),
		ExpiresAt:         s.clock.Now().Add(time.Hour),
	}))
	return signed
}

// request performs one request against the router. remoteAddr is what the
// connection would report, not what the token claims.
func (s *APISuite) request(router http.Handler, method, path, bearer, remoteAddr string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = remoteAddr
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) createGame(bearer, gameID string) {
	rec := s.request(s.router, http.MethodPost, "/api/v1/games", bearer, "127.0.0.1:53000",
		map[string]any{"game_id": gameID, "level": "VNTE-Resort"})
	s.Require().Equal(http.StatusCreated, rec.Code)
}

func (s *APISuite) TestHealthNeedsNoAuth() {
	rec := s.request(s.router, http.MethodGet, "/api/v1/health", "", "192.0.2.1:1234", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *APISuite) TestCreateGame() {
	bearer := s.provision("127.0.0.1", 7777)

	rec := s.request(s.router, http.MethodPost, "/api/v1/games", bearer, "127.0.0.1:53000",
		map[string]any{"game_id": "game-1", "level": "VNTE-Resort"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var got response.Game
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("game-1", got.GameID)
	s.Equal("VNTE-Resort", got.Level)
	// Owner comes from the verified identity, including the claimed port
	s.Equal("127.0.0.1", got.GameServerAddress)
	s.Equal(7777, got.GameServerPort)
	s.Nil(got.StopTime)
}

func (s *APISuite) TestCreateGameDuplicate() {
	bearer := s.provision("127.0.0.1", 7777)
	s.createGame(bearer, "game-1")

	rec := s.request(s.router, http.MethodPost, "/api/v1/games", bearer, "127.0.0.1:53000",
		map[string]any{"game_id": "game-1", "level": "VNTE-Resort"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Contains(rec.Body.String(), "GAME_EXISTS")
}

func (s *APISuite) TestCreateGameValidation() {
	bearer := s.provision("127.0.0.1", 7777)

	for _, body := range []map[string]any{
		{"level": "VNTE-Resort"},
		{"game_id": "game-1"},
	} {
		rec := s.request(s.router, http.MethodPost, "/api/v1/games", bearer, "127.0.0.1:53000", body)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "INVALID_REQUEST")
	}
}

func (s *APISuite) TestGetGame() {
	bearer := s.provision("127.0.0.1", 7777)
	s.createGame(bearer, "game-1")

	rec := s.request(s.router, http.MethodGet, "/api/v1/games/game-1", bearer, "127.0.0.1:53000", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var got response.Game
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("game-1", got.GameID)
}

func (s *APISuite) TestGetMissingGame() {
	bearer := s.provision("127.0.0.1", 7777)

	rec := s.request(s.router, http.MethodGet, "/api/v1/games/missing", bearer, "127.0.0.1:53000", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "GAME_NOT_FOUND")
}

func (s *APISuite) TestStopGame() {
	bearer := s.provision("127.0.0.1", 7777)
	s.createGame(bearer, "game-1")

	rec := s.request(s.router, http.MethodPost, "/api/v1/games/game-1/stop", bearer, "127.0.0.1:53000",
		map[string]any{})
	s.Require().Equal(http.StatusNoContent, rec.Code)

	game, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Require().NotNil(game.StopTime)
	s.Equal(s.clock.Now(), *game.StopTime)
}

func (s *APISuite) TestChatAndKillIngestion() {
	bearer := s.provision("127.0.0.1", 7777)
	s.createGame(bearer, "game-1")

	rec := s.request(s.router, http.MethodPost, "/api/v1/games/game-1/chat", bearer, "127.0.0.1:53000",
		map[string]any{"message": "push the bridge", "sender_name": "player one", "sender_team": 0, "channel": 1})
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.request(s.router, http.MethodPost, "/api/v1/games/game-1/kills", bearer, "127.0.0.1:53000",
		map[string]any{
			"killer_name": "player one", "victim_name": "player two",
			"killer_team": 0, "victim_team": 1,
			"damage_type": "RifleDamage", "kill_distance_m": 123.4,
		})
	s.Require().Equal(http.StatusNoContent, rec.Code)

	s.Len(s.storage.ChatMessages(), 1)
	s.Len(s.storage.Kills(), 1)
}

func (s *APISuite) TestChatRequiresMessage() {
	bearer := s.provision("127.0.0.1", 7777)
	s.createGame(bearer, "game-1")

	rec := s.request(s.router, http.MethodPost, "/api/v1/games/game-1/chat", bearer, "127.0.0.1:53000",
		map[string]any{"sender_name": "player one"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestOwnershipEnforced() {
	owner := s.provision("127.0.0.1", 7777)
	s.createGame(owner, "game-1")

	// A different, fully authenticated server must not see the game
	intruder := s.provision("10.0.0.9", 7777)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/games/game-1", nil},
		{http.MethodPost, "/api/v1/games/game-1/stop", map[string]any{}},
		{http.MethodPost, "/api/v1/games/game-1/chat", map[string]any{"message": "hello"}},
		{http.MethodPost, "/api/v1/games/game-1/kills", map[string]any{}},
	} {
		rec := s.request(s.router, tc.method, tc.path, intruder, "10.0.0.9:53000", tc.body)
		s.Equal(http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
		s.Contains(rec.Body.String(), "NOT_GAME_OWNER")
	}
}

func (s *APISuite) TestSamePortDifferentAddressIsNotOwner() {
	owner := s.provision("127.0.0.1", 7777)
	s.createGame(owner, "game-1")

	other := s.provision("127.0.0.1", 7778)
	rec := s.request(s.router, http.MethodGet, "/api/v1/games/game-1", other, "127.0.0.1:53000", nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *APISuite) TestAllAuthFailuresLookIdentical() {
	s.provision("127.0.0.1", 7777)

	// A validly signed token with no stored credential
	unprovisioned, _, err := s.issuer.Issue(
		netip.MustParseAddr("127.0.0.1"), 7779, s.clock.Now(), s.clock.Now().Add(time.Hour))
	s.Require().NoError(err)

	valid := s.provision("192.0.2.10", 7878)

	cases := []struct {
		name       string
		bearer     string
		remoteAddr string
	}{
		{"no token", "", "127.0.0.1:53000"},
		{"garbage token", "not-a-jwt", "127.0.0.1:53000"},
		{"source address mismatch", valid, "127.0.0.1:53000"},
		{"no stored credential", unprovisioned, "127.0.0.1:53000"},
	}

	var bodies []string
	for _, tc := range cases {
		rec := s.request(s.router, http.MethodPost, "/api/v1/games", tc.bearer, tc.remoteAddr,
			map[string]any{"game_id": "game-x", "level": "VNTE-Resort"})
		s.Require().Equal(http.StatusUnauthorized, rec.Code, tc.name)
		bodies = append(bodies, rec.Body.String())
	}

	// The response must not reveal which step rejected
	for i := 1; i < len(bodies); i++ {
		s.Equal(bodies[0], bodies[i])
	}
}

func (s *APISuite) TestTrustedProxyHonorsForwardedFor() {
	proxied := s.newRouter(true, "")
	bearer := s.provision("203.0.113.5", 7777)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/games", bytes.NewBufferString(
		`{"game_id":"game-1","level":"VNTE-Resort"}`))
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 127.0.0.1")

	rec := httptest.NewRecorder()
	proxied.ServeHTTP(rec, req)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *APISuite) TestForwardedForIgnoredWithoutTrustedProxy() {
	bearer := s.provision("203.0.113.5", 7777)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/games", bytes.NewBufferString(
		`{"game_id":"game-1","level":"VNTE-Resort"}`))
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestAdminClearCache() {
	s.Require().NoError(s.cache.Put(s.ctx, netip.MustParseAddr("127.0.0.1"), 7777, time.Hour))

	rec := s.request(s.router, http.MethodPost, "/api/v1/admin/cache/clear", adminSecret, "192.0.2.1:1234", nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	hit, err := s.cache.Get(s.ctx, netip.MustParseAddr("127.0.0.1"), 7777)
	s.Require().NoError(err)
	s.False(hit)
}

func (s *APISuite) TestAdminClearCacheWrongSecret() {
	rec := s.request(s.router, http.MethodPost, "/api/v1/admin/cache/clear", "wrong", "192.0.2.1:1234", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.request(s.router, http.MethodPost, "/api/v1/admin/cache/clear", "", "192.0.2.1:1234", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestAdminRoutesAbsentWithoutSecretHash() {
	router := s.newRouter(false, "")

	rec := s.request(router, http.MethodPost, "/api/v1/admin/cache/clear", adminSecret, "192.0.2.1:1234", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}
