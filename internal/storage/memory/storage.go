package memory

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	credentials     []*model.Credential
	games           map[model.GameID]*model.Game
	chatMessages    []*model.ChatMessage
	kills           []*model.Kill
	livenessQueries int64
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		games: make(map[model.GameID]*model.Game),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, copyCredential(cred))
	return nil
}

func (s *Storage) CredentialsForServer(ctx context.Context, addr netip.Addr, port int) ([]*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*model.Credential
	for _, c := range s.credentials {
		if c.GameServerAddress == addr && c.GameServerPort == port {
			matches = append(matches, copyCredential(c))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

// copyCredential clones a credential including its hash bytes, so stored rows
// never share memory with callers
func copyCredential(cred *model.Credential) *model.Credential {
	c := *cred
	c.TokenHash = append([]byte(nil), cred.TokenHash...)
	return &c
}

func (s *Storage) CredentialServers(ctx context.Context) ([]model.ServerEndpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[model.ServerEndpoint]struct{})
	var servers []model.ServerEndpoint
	for _, c := range s.credentials {
		ep := model.ServerEndpoint{Address: c.GameServerAddress, Port: c.GameServerPort}
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		servers = append(servers, ep)
	}
	return servers, nil
}

func (s *Storage) DeleteExpiredCredentials(ctx context.Context, now time.Time, leeway time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.credentials[:0]
	var removed int64
	for _, c := range s.credentials {
		if now.After(c.ExpiresAt.Add(leeway)) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.credentials = kept
	return removed, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; ok {
		return model.ErrGameExists
	}
	g := *game
	s.games[game.ID] = &g
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, upd model.GameUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return model.ErrGameNotFound
	}
	if upd.StopTime != nil {
		t := *upd.StopTime
		g.StopTime = &t
	}
	if upd.PreviousResponseID != nil {
		g.PreviousResponseID = *upd.PreviousResponseID
	}
	return nil
}

func (s *Storage) DeleteFinishedGames(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, g := range s.games {
		if g.StopTime != nil && now.After(g.StopTime.Add(retention)) {
			delete(s.games, id)
			removed++
		}
	}
	return removed, nil
}

// Event ingestion

func (s *Storage) SaveChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *msg
	s.chatMessages = append(s.chatMessages, &m)
	return nil
}

func (s *Storage) SaveKill(ctx context.Context, kill *model.Kill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := *kill
	s.kills = append(s.kills, &k)
	return nil
}

func (s *Storage) IncrementLivenessQueries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.livenessQueries++
	return nil
}

// LivenessQueries returns the current counter value (for tests and the CLI)
func (s *Storage) LivenessQueries() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.livenessQueries
}

// ChatMessages returns all stored chat messages (for tests)
func (s *Storage) ChatMessages() []*model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.ChatMessage(nil), s.chatMessages...)
}

// Kills returns all stored kill events (for tests)
func (s *Storage) Kills() []*model.Kill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Kill(nil), s.kills...)
}
