package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/storage"
)

// Storage is a MySQL-backed implementation of the storage interface
type Storage struct {
	db  *sql.DB
	cfg Config
}

// New creates a new MySQL storage instance and initializes the schema
func New(cfg Config) (*Storage, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &Storage{db: db, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB creates a MySQL storage with an existing handle (for testing)
func NewWithDB(db *sql.DB, cfg Config) *Storage {
	return &Storage{db: db, cfg: cfg}
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// opCtx bounds one statement with the configured timeout
func (s *Storage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

func (s *Storage) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS game_server_credential (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			game_server_address VARCHAR(15) NOT NULL,
			game_server_port SMALLINT UNSIGNED NOT NULL,
			token_hash VARBINARY(32) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			name VARCHAR(255) NULL,
			INDEX idx_credential_server (game_server_address, game_server_port)
		)`,
		`CREATE TABLE IF NOT EXISTS game (
			id VARCHAR(64) PRIMARY KEY,
			level VARCHAR(255) NOT NULL,
			start_time DATETIME(6) NOT NULL,
			stop_time DATETIME(6) NULL,
			game_server_address VARCHAR(15) NOT NULL,
			game_server_port SMALLINT UNSIGNED NOT NULL,
			llm_previous_response_id VARCHAR(255) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS game_chat_message (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL,
			message TEXT NOT NULL,
			send_time DATETIME(6) NOT NULL,
			sender_name VARCHAR(255) NOT NULL,
			sender_team TINYINT NOT NULL,
			channel TINYINT NOT NULL,
			INDEX idx_chat_game (game_id)
		)`,
		`CREATE TABLE IF NOT EXISTS game_kill (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL,
			kill_time DATETIME(6) NOT NULL,
			killer_name VARCHAR(255) NOT NULL,
			victim_name VARCHAR(255) NOT NULL,
			killer_team TINYINT NOT NULL,
			victim_team TINYINT NOT NULL,
			damage_type VARCHAR(255) NOT NULL,
			kill_distance_m DOUBLE NOT NULL,
			INDEX idx_kill_game (game_id)
		)`,
		`CREATE TABLE IF NOT EXISTS liveness_query_count (
			id TINYINT PRIMARY KEY,
			query_count BIGINT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_server_credential
			(game_server_address, game_server_port, token_hash, created_at, expires_at, name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cred.GameServerAddress.String(),
		cred.GameServerPort,
		cred.TokenHash,
		cred.CreatedAt,
		cred.ExpiresAt,
		nullString(cred.Name),
	)
	return err
}

func (s *Storage) CredentialsForServer(ctx context.Context, addr netip.Addr, port int) ([]*model.Credential, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT game_server_address, game_server_port, token_hash, created_at, expires_at, name
		FROM game_server_credential
		WHERE game_server_address = ? AND game_server_port = ?
		ORDER BY created_at DESC`,
		addr.String(), port,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var creds []*model.Credential
	for rows.Next() {
		var (
			rawAddr string
			name    sql.NullString
			cred    model.Credential
		)
		err := rows.Scan(&rawAddr, &cred.GameServerPort, &cred.TokenHash,
			&cred.CreatedAt, &cred.ExpiresAt, &name)
		if err != nil {
			return nil, err
		}
		cred.GameServerAddress, err = netip.ParseAddr(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("stored address %q: %w", rawAddr, err)
		}
		cred.Name = name.String
		creds = append(creds, &cred)
	}
	return creds, rows.Err()
}

func (s *Storage) CredentialServers(ctx context.Context) ([]model.ServerEndpoint, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT game_server_address, game_server_port
		FROM game_server_credential`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []model.ServerEndpoint
	for rows.Next() {
		var (
			rawAddr string
			ep      model.ServerEndpoint
		)
		if err := rows.Scan(&rawAddr, &ep.Port); err != nil {
			return nil, err
		}
		ep.Address, err = netip.ParseAddr(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("stored address %q: %w", rawAddr, err)
		}
		servers = append(servers, ep)
	}
	return servers, rows.Err()
}

func (s *Storage) DeleteExpiredCredentials(ctx context.Context, now time.Time, leeway time.Duration) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM game_server_credential
		WHERE ? > DATE_ADD(expires_at, INTERVAL ? MICROSECOND)`,
		now, leeway.Microseconds(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game
			(id, level, start_time, stop_time, game_server_address, game_server_port, llm_previous_response_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(game.ID),
		game.Level,
		game.StartTime,
		game.StopTime,
		game.GameServerAddress.String(),
		game.GameServerPort,
		game.PreviousResponseID,
	)
	if isDuplicateKey(err) {
		return model.ErrGameExists
	}
	return err
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, level, start_time, stop_time, game_server_address, game_server_port, llm_previous_response_id
		FROM game
		WHERE id = ?`,
		string(id),
	)

	var (
		rawAddr  string
		stopTime sql.NullTime
		game     model.Game
	)
	err := row.Scan(&game.ID, &game.Level, &game.StartTime, &stopTime,
		&rawAddr, &game.GameServerPort, &game.PreviousResponseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if stopTime.Valid {
		t := stopTime.Time
		game.StopTime = &t
	}
	game.GameServerAddress, err = netip.ParseAddr(rawAddr)
	if err != nil {
		return nil, fmt.Errorf("stored address %q: %w", rawAddr, err)
	}
	return &game, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, upd model.GameUpdate) error {
	if upd.StopTime == nil && upd.PreviousResponseID == nil {
		return nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "UPDATE game SET "
	var args []any
	if upd.StopTime != nil {
		query += "stop_time = ?"
		args = append(args, *upd.StopTime)
	}
	if upd.PreviousResponseID != nil {
		if len(args) > 0 {
			query += ", "
		}
		query += "llm_previous_response_id = ?"
		args = append(args, *upd.PreviousResponseID)
	}
	query += " WHERE id = ?"
	args = append(args, string(id))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// RowsAffected is 0 both for a missing row and for a no-op update;
		// distinguish with an existence check.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM game WHERE id = ?`, string(id)).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrGameNotFound
		}
		return err
	}
	return nil
}

func (s *Storage) DeleteFinishedGames(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM game
		WHERE stop_time IS NOT NULL
		  AND ? > DATE_ADD(stop_time, INTERVAL ? MICROSECOND)`,
		now, retention.Microseconds(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Event ingestion

func (s *Storage) SaveChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_chat_message
			(game_id, message, send_time, sender_name, sender_team, channel)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(msg.GameID), msg.Message, msg.SendTime,
		msg.SenderName, int(msg.SenderTeam), int(msg.Channel),
	)
	return err
}

func (s *Storage) SaveKill(ctx context.Context, kill *model.Kill) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_kill
			(game_id, kill_time, killer_name, victim_name, killer_team, victim_team, damage_type, kill_distance_m)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(kill.GameID), kill.KillTime, kill.KillerName, kill.VictimName,
		int(kill.KillerTeam), int(kill.VictimTeam), kill.DamageType, kill.KillDistanceM,
	)
	return err
}

func (s *Storage) IncrementLivenessQueries(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO liveness_query_count (id, query_count)
		VALUES (1, 1)
		ON DUPLICATE KEY UPDATE query_count = query_count + 1`,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isDuplicateKey reports whether err is a MySQL duplicate-key error (1062)
func isDuplicateKey(err error) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
