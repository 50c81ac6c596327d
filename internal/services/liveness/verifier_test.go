package liveness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cachememory "github.com/avikko/gsproxy/internal/cache/memory"
	"github.com/avikko/gsproxy/internal/dependencies/mocks"
	storagememory "github.com/avikko/gsproxy/internal/storage/memory"
	"github.com/avikko/gsproxy/internal/testutil"
)

type VerifierSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	cache   *cachememory.Cache
	storage *storagememory.Storage
	ctx     context.Context
	addr    netip.Addr

	requests   atomic.Int64
	lastFilter atomic.Value
	body       atomic.Value
	status     atomic.Int64
	listServer *httptest.Server
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s.cache = cachememory.New(s.clock)
	s.storage = storagememory.New()
	s.ctx = context.Background()
	s.addr = netip.MustParseAddr("127.0.0.1")

	s.requests.Store(0)
	s.status.Store(http.StatusOK)
	s.body.Store(`{"response":{"servers":[{"addr":"127.0.0.1:7777","gamedir":"rs2"}]}}`)
	s.listServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.lastFilter.Store(r.URL.Query().Get("filter"))
		w.WriteHeader(int(s.status.Load()))
		_, _ = w.Write([]byte(s.body.Load().(string)))
	}))
}

func (s *VerifierSuite) TearDownTest() {
	s.listServer.Close()
}

func (s *VerifierSuite) verifier() *Verifier {
	cfg := DefaultConfig()
	cfg.APIKey = "test-api-key"
	cfg.ServerListURL = s.listServer.URL
	return New(cfg, s.listServer.Client(), s.cache, s.storage, testutil.NopLogger())
}

func (s *VerifierSuite) TestListedServerIsLive() {
	v := s.verifier()

	s.True(v.Verify(s.ctx, s.addr, 7777))
	s.Equal(int64(1), s.requests.Load())
}

func (s *VerifierSuite) TestFilterNamesGameDirAndAddress() {
	v := s.verifier()
	v.Verify(s.ctx, s.addr, 7777)

	s.Equal(`\gamedir\rs2\gameaddr\127.0.0.1:7777`, s.lastFilter.Load())
}

func (s *VerifierSuite) TestEmptyListingIsNotLive() {
	s.body.Store(`{"response":{"servers":[]}}`)
	v := s.verifier()

	s.False(v.Verify(s.ctx, s.addr, 7777))
}

func (s *VerifierSuite) TestMissingServersFieldIsNotLive() {
	s.body.Store(`{"response":{}}`)
	v := s.verifier()

	s.False(v.Verify(s.ctx, s.addr, 7777))
}

func (s *VerifierSuite) TestMalformedResponseIsNotLive() {
	s.body.Store(`{"response":`)
	v := s.verifier()

	s.False(v.Verify(s.ctx, s.addr, 7777))
}

func (s *VerifierSuite) TestUpstreamErrorIsNotLive() {
	s.status.Store(http.StatusInternalServerError)
	v := s.verifier()

	s.False(v.Verify(s.ctx, s.addr, 7777))
}

func (s *VerifierSuite) TestUnreachableListServiceIsNotLive() {
	v := s.verifier()
	s.listServer.Close()

	s.False(v.Verify(s.ctx, s.addr, 7777))
}

func (s *VerifierSuite) TestPositiveVerdictIsCached() {
	v := s.verifier()

	s.True(v.Verify(s.ctx, s.addr, 7777))
	s.True(v.Verify(s.ctx, s.addr, 7777))

	// Second call must be served from cache
	s.Equal(int64(1), s.requests.Load())
}

func (s *VerifierSuite) TestCachedVerdictExpires() {
	v := s.verifier()

	s.True(v.Verify(s.ctx, s.addr, 7777))
	s.clock.Advance(61 * time.Minute)
	s.True(v.Verify(s.ctx, s.addr, 7777))

	s.Equal(int64(2), s.requests.Load())
}

func (s *VerifierSuite) TestNegativeVerdictIsNotCached() {
	s.body.Store(`{"response":{"servers":[]}}`)
	v := s.verifier()

	s.False(v.Verify(s.ctx, s.addr, 7777))

	// The server comes back: the next check must probe again and succeed
	s.body.Store(`{"response":{"servers":[{"addr":"127.0.0.1:7777"}]}}`)
	s.True(v.Verify(s.ctx, s.addr, 7777))
	s.Equal(int64(2), s.requests.Load())
}

func (s *VerifierSuite) TestEachProbeCountsOneQuery() {
	v := s.verifier()

	v.Verify(s.ctx, s.addr, 7777)
	v.Verify(s.ctx, s.addr, 7778)

	// Counter writes are fire-and-forget
	s.Require().Eventually(func() bool {
		return s.storage.LivenessQueries() == 2
	}, time.Second, 10*time.Millisecond)
}

func (s *VerifierSuite) TestCacheHitDoesNotCountAQuery() {
	v := s.verifier()

	v.Verify(s.ctx, s.addr, 7777)
	v.Verify(s.ctx, s.addr, 7777)

	s.Require().Eventually(func() bool {
		return s.storage.LivenessQueries() == 1
	}, time.Second, 10*time.Millisecond)
	// Give a stray second write a chance to land before asserting it didn't
	time.Sleep(50 * time.Millisecond)
	s.Equal(int64(1), s.storage.LivenessQueries())
}

func (s *VerifierSuite) TestEnabledFollowsAPIKey() {
	cfg := DefaultConfig()
	cfg.ServerListURL = s.listServer.URL

	disabled := New(cfg, s.listServer.Client(), s.cache, s.storage, testutil.NopLogger())
	s.False(disabled.Enabled())

	cfg.APIKey = "test-api-key"
	enabled := New(cfg, s.listServer.Client(), s.cache, s.storage, testutil.NopLogger())
	s.True(enabled.Enabled())
}
