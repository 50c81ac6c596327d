package request

import "time"

// CreateGameRequest is the body for POST /games. The owning game server is
// always taken from the verified identity, never from the body.
type CreateGameRequest struct {
	GameID    string     `json:"game_id"`
	Level     string     `json:"level"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

// StopGameRequest is the body for POST /games/{game_id}/stop
type StopGameRequest struct {
	StopTime *time.Time `json:"stop_time,omitempty"`
}

// ChatMessageRequest is the body for POST /games/{game_id}/chat
type ChatMessageRequest struct {
	Message    string     `json:"message"`
	SenderName string     `json:"sender_name"`
	SenderTeam int        `json:"sender_team"`
	Channel    int        `json:"channel"`
	SendTime   *time.Time `json:"send_time,omitempty"`
}

// KillRequest is the body for POST /games/{game_id}/kills
type KillRequest struct {
	KillerName    string     `json:"killer_name"`
	VictimName    string     `json:"victim_name"`
	KillerTeam    int        `json:"killer_team"`
	VictimTeam    int        `json:"victim_team"`
	DamageType    string     `json:"damage_type"`
	KillDistanceM float64    `json:"kill_distance_m"`
	KillTime      *time.Time `json:"kill_time,omitempty"`
}
