package model

import (
	"net/netip"
	"time"
)

// GameID identifies a single match on a game server
type GameID string

// Game is the long-lived record of one match being relayed. The owning
// address and port are captured at creation time from the verified identity
// of the creating request and never change afterwards.
type Game struct {
	ID        GameID
	Level     string
	StartTime time.Time
	StopTime  *time.Time

	GameServerAddress netip.Addr
	GameServerPort    int

	// PreviousResponseID is the LLM conversation continuation handle for
	// this match, if any
	PreviousResponseID string
}

// Finished reports whether the game has a recorded stop time
func (g *Game) Finished() bool {
	return g.StopTime != nil
}

// GameUpdate describes a partial update to a game. Nil fields are left
// untouched.
type GameUpdate struct {
	StopTime           *time.Time
	PreviousResponseID *string
}
