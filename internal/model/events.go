package model

import "time"

// Team identifies which side a player is on. Values mirror the wire format
// the game server mutator sends.
type Team int

const (
	TeamNorth   Team = 0
	TeamSouth   Team = 1
	TeamNeutral Team = 3
)

// SayType identifies a chat channel
type SayType int

const (
	SayAll  SayType = 0
	SayTeam SayType = 1
)

// ChatMessage is a single in-game chat line ingested from a game server
type ChatMessage struct {
	GameID     GameID
	Message    string
	SendTime   time.Time
	SenderName string
	SenderTeam Team
	Channel    SayType
}

// Kill is a single kill event ingested from a game server
type Kill struct {
	GameID        GameID
	KillTime      time.Time
	KillerName    string
	VictimName    string
	KillerTeam    Team
	VictimTeam    Team
	DamageType    string
	KillDistanceM float64
}
