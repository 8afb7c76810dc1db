package types

import (
	"github.com/cardline/timeline-backend/internal/engine"
	"github.com/cardline/timeline-backend/internal/session"
)

// Client -> server message types.
const (
	MsgCreateLobby     = "createLobby"
	MsgJoinLobby       = "joinLobby"
	MsgStartGame       = "startGame"
	MsgJoinGame        = "joinGame"
	MsgPlaceCard       = "placeCard"
	MsgSetReady        = "setReady"
	MsgRequestLobbies  = "requestLobbies"
	MsgGameStateUpdate = "gameStateUpdate"
)

// Server -> client message types.
const (
	MsgJoinedLobby   = "joinedLobby"
	MsgLobbiesUpdate = "lobbiesUpdate"
	MsgPlayerJoined  = "playerJoined"
	MsgPlayerLeft    = "playerLeft"
	MsgGameStarting  = "gameStarting"
	MsgGameState     = "gameState"
	MsgError         = "error"
)

// ClientMessage is every message a client can send; Type selects which
// fields are meaningful. Index is a pointer so a missing index is
// distinguishable from position 0.
type ClientMessage struct {
	Type       string        `json:"type"`
	LobbyID    string        `json:"lobbyId,omitempty"`
	GameID     string        `json:"gameId,omitempty"`
	Name       string        `json:"name,omitempty"`
	PlayerName string        `json:"playerName,omitempty"`
	GameType   string        `json:"gameType,omitempty"`
	Category   string        `json:"category,omitempty"`
	CardID     string        `json:"cardId,omitempty"`
	Index      *int          `json:"index,omitempty"`
	Ready      bool          `json:"ready,omitempty"`
	Version    int           `json:"version,omitempty"`
	State      *engine.State `json:"state,omitempty"`
}

type ServerMessage struct {
	Type        string            `json:"type"`
	Version     int               `json:"version,omitempty"`
	LobbyID     string            `json:"lobbyId,omitempty"`
	IsHost      bool              `json:"isHost,omitempty"`
	PlayerID    string            `json:"playerId,omitempty"`
	PlayerName  string            `json:"playerName,omitempty"`
	PlayerCount int               `json:"playerCount,omitempty"`
	Lobbies     []session.Summary `json:"lobbies,omitempty"` // always set on lobbiesUpdate
	State       *engine.State     `json:"state,omitempty"`
	Error       string            `json:"error,omitempty"`
}
