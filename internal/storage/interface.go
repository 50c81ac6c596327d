package storage

import (
	"context"
	"net/netip"
	"time"

	"github.com/avikko/gsproxy/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Credential operations. SaveCredential is append-only: provisioning a
	// new credential never overwrites an existing row, so several rows may
	// coexist for one (address, port) pair during rotation.
	SaveCredential(ctx context.Context, cred *model.Credential) error
	// CredentialsForServer returns every credential stored for the pair,
	// newest first. An empty slice with a nil error means none exist.
	CredentialsForServer(ctx context.Context, addr netip.Addr, port int) ([]*model.Credential, error)
	// DeleteExpiredCredentials removes credentials whose expiry plus leeway
	// has passed and returns the number of rows removed
	DeleteExpiredCredentials(ctx context.Context, now time.Time, leeway time.Duration) (int64, error)
	// CredentialServers returns the distinct (address, port) pairs that have
	// at least one stored credential
	CredentialServers(ctx context.Context) ([]model.ServerEndpoint, error)

	// Game operations
	SaveGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	UpdateGame(ctx context.Context, id model.GameID, upd model.GameUpdate) error
	// DeleteFinishedGames removes games whose stop time plus retention has
	// passed and returns the number of rows removed
	DeleteFinishedGames(ctx context.Context, now time.Time, retention time.Duration) (int64, error)

	// Event ingestion
	SaveChatMessage(ctx context.Context, msg *model.ChatMessage) error
	SaveKill(ctx context.Context, kill *model.Kill) error

	// IncrementLivenessQueries bumps the outbound liveness query counter
	IncrementLivenessQueries(ctx context.Context) error
}
