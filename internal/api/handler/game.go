package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/avikko/gsproxy/internal/api/apierr"
	"github.com/avikko/gsproxy/internal/api/middleware"
	"github.com/avikko/gsproxy/internal/api/request"
	"github.com/avikko/gsproxy/internal/api/response"
	"github.com/avikko/gsproxy/internal/dependencies/clock"
	"github.com/avikko/gsproxy/internal/model"
	"github.com/avikko/gsproxy/internal/storage"
)

// GameHandler handles game-related endpoints. These are thin persistence
// handlers; all authentication and ownership enforcement happens in the
// middleware chain before they run.
type GameHandler struct {
	store storage.Storage
	clock clock.Clock
}

// NewGameHandler creates a new game handler
func NewGameHandler(store storage.Storage, clk clock.Clock) *GameHandler {
	return &GameHandler{
		store: store,
		clock: clk,
	}
}

// Create handles POST /api/v1/games
//
// There is no game to own yet, so this route is authenticated but not
// ownership-guarded. The new game's owner is bound to the verified identity;
// anything the client claims about ownership is ignored.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}

	var req request.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if req.GameID == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("game_id is required"))
		return
	}
	if req.Level == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("level is required"))
		return
	}

	startTime := h.clock.Now()
	if req.StartTime != nil {
		startTime = *req.StartTime
	}

	game := &model.Game{
		ID:                model.GameID(req.GameID),
		Level:             req.Level,
		StartTime:         startTime,
		GameServerAddress: identity.Address,
		GameServerPort:    identity.Port,
	}

	if err := h.store.SaveGame(r.Context(), game); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.GameFromModel(game))
}

// Get handles GET /api/v1/games/{game_id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	game, ok := middleware.GameFrom(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}
	response.JSON(w, http.StatusOK, response.GameFromModel(game))
}

// Stop handles POST /api/v1/games/{game_id}/stop
func (h *GameHandler) Stop(w http.ResponseWriter, r *http.Request) {
	game, ok := middleware.GameFrom(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	var req request.StopGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	stopTime := h.clock.Now()
	if req.StopTime != nil {
		stopTime = *req.StopTime
	}

	upd := model.GameUpdate{StopTime: &stopTime}
	if err := h.store.UpdateGame(r.Context(), game.ID, upd); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Chat handles POST /api/v1/games/{game_id}/chat
func (h *GameHandler) Chat(w http.ResponseWriter, r *http.Request) {
	game, ok := middleware.GameFrom(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	var req request.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Message == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("message is required"))
		return
	}

	msg := &model.ChatMessage{
		GameID:     game.ID,
		Message:    req.Message,
		SendTime:   h.eventTime(req.SendTime),
		SenderName: req.SenderName,
		SenderTeam: model.Team(req.SenderTeam),
		Channel:    model.SayType(req.Channel),
	}

	if err := h.store.SaveChatMessage(r.Context(), msg); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Kill handles POST /api/v1/games/{game_id}/kills
func (h *GameHandler) Kill(w http.ResponseWriter, r *http.Request) {
	game, ok := middleware.GameFrom(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	var req request.KillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	kill := &model.Kill{
		GameID:        game.ID,
		KillTime:      h.eventTime(req.KillTime),
		KillerName:    req.KillerName,
		VictimName:    req.VictimName,
		KillerTeam:    model.Team(req.KillerTeam),
		VictimTeam:    model.Team(req.VictimTeam),
		DamageType:    req.DamageType,
		KillDistanceM: req.KillDistanceM,
	}

	if err := h.store.SaveKill(r.Context(), kill); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.NoContent(w)
}

func (h *GameHandler) eventTime(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return h.clock.Now()
}
