package response

import (
	"time"

	"github.com/avikko/gsproxy/internal/model"
)

// Game is the wire representation of a game record
type Game struct {
	GameID            string     `json:"game_id"`
	Level             string     `json:"level"`
	StartTime         time.Time  `json:"start_time"`
	StopTime          *time.Time `json:"stop_time,omitempty"`
	GameServerAddress string     `json:"game_server_address"`
	GameServerPort    int        `json:"game_server_port"`
}

// GameFromModel converts a model game to its wire representation. The LLM
// continuation handle is deliberately not exposed to game servers.
func GameFromModel(g *model.Game) Game {
	return Game{
		GameID:            string(g.ID),
		Level:             g.Level,
		StartTime:         g.StartTime,
		StopTime:          g.StopTime,
		GameServerAddress: g.GameServerAddress.String(),
		GameServerPort:    g.GameServerPort,
	}
}
