package hotpotato

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "join", "setRequiredPlayers", "throw"
	Name  string `json:"name,omitempty"`  // join
	Count int    `json:"count,omitempty"` // setRequiredPlayers
}

// DecodeClientMessage turns one client frame into an Event on behalf of playerID.
func DecodeClientMessage(data []byte, playerID string) (Event, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	switch msg.Type {
	case "join":
		return Join{PlayerID: playerID, Name: msg.Name}, nil
	case "setRequiredPlayers":
		return SetRequiredPlayers{PlayerID: playerID, Count: msg.Count}, nil
	case "throw":
		return Throw{PlayerID: playerID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// Messages sent to clients. Durations are milliseconds.
const (
	MsgJoined       = "joined"
	MsgRejected     = "rejected"
	MsgLobbyUpdate  = "lobbyUpdate"
	MsgGameStart    = "gameStart"
	MsgPotatoThrown = "potatoThrown"
	MsgPotatoCaught = "potatoCaught"
	MsgPotatoPassed = "potatoPassed"
	MsgWarning      = "warning"
	MsgEliminated   = "eliminated"
	MsgForfeit      = "forfeit"
	MsgWinner       = "winner"
	MsgGameEnd      = "gameEnd"
	MsgGameState    = "gameState"
)

// Sent only to the player whose join was accepted.
type JoinedMessage struct {
	Type      string `json:"type"` // "joined"
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
	HostID    string `json:"hostId"`
}

// Sent only to a player whose join was refused.
type RejectedMessage struct {
	Type   string `json:"type"`   // "rejected"
	Reason string `json:"reason"` // "lobby_full" or "name_taken"
}

type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Live bool   `json:"live"`
}

// Waiting is the number of members currently in the lobby.
type LobbyUpdateMessage struct {
	Type      string       `json:"type"` // "lobbyUpdate"
	SessionID string       `json:"sessionId"`
	Phase     Phase        `json:"phase"`
	Players   []PlayerInfo `json:"players"`
	HostID    string       `json:"hostId"`
	Waiting   int          `json:"waiting"`
	Required  int          `json:"required"`
	Max       int          `json:"max"`
}

type GameStartMessage struct {
	Type            string       `json:"type"` // "gameStart"
	Players         []PlayerInfo `json:"players"`
	HolderID        string       `json:"holderId"`
	MaxHoldDuration int64        `json:"maxHoldDuration"`
	WarnBefore      []int64      `json:"warnBefore"`
}

type PotatoThrownMessage struct {
	Type       string `json:"type"` // "potatoThrown"
	From       string `json:"from"`
	To         string `json:"to"`
	InFlight   bool   `json:"inFlight"`
	FlightTime int64  `json:"flightTime"`
}

type PotatoCaughtMessage struct {
	Type     string `json:"type"` // "potatoCaught"
	HolderID string `json:"holderId"`
	From     string `json:"from"`
}

// Holder changed without a throw.
type PotatoPassedMessage struct {
	Type     string `json:"type"` // "potatoPassed"
	HolderID string `json:"holderId,omitempty"`
	Target   string `json:"target,omitempty"`
	Reason   string `json:"reason"` // "holderLeft" or "targetLeft"
}

type WarningMessage struct {
	Type      string `json:"type"` // "warning"
	HolderID  string `json:"holderId"`
	Remaining int64  `json:"remaining"`
}

type EliminatedMessage struct {
	Type         string `json:"type"` // "eliminated"
	PlayerID     string `json:"playerId"`
	Order        int    `json:"order"`
	PotatoHolder string `json:"potatoHolder,omitempty"`
}

// ForfeitMessage is the eliminated player's private copy of EliminatedMessage.
type ForfeitMessage struct {
	Type          string `json:"type"` // "forfeit"
	PlayerID      string `json:"playerId"`
	Order         int    `json:"order"`
	PotatoHolder  string `json:"potatoHolder,omitempty"`
	TotalHoldTime int64  `json:"totalHoldTime"`
}

type WinnerMessage struct {
	Type     string `json:"type"` // "winner"
	PlayerID string `json:"playerId"`
}

// Place 1 is the winner; the rest follow in reverse elimination order.
type Standing struct {
	PlayerID      string `json:"playerId"`
	Name          string `json:"name"`
	Place         int    `json:"place"`
	TotalHoldTime int64  `json:"totalHoldTime"`
}

type GameEndMessage struct {
	Type       string     `json:"type"` // "gameEnd"
	FinalOrder []Standing `json:"finalOrder"`
}

// GameStateMessage is the full snapshot broadcast after every accepted change
// while a game is active.
type GameStateMessage struct {
	Type     string   `json:"type"` // "gameState"
	Phase    Phase    `json:"phase"`
	HolderID string   `json:"holderId,omitempty"`
	InFlight bool     `json:"inFlight"`
	Target   string   `json:"target,omitempty"`
	HeldFor  int64    `json:"heldFor"`
	Live     []string `json:"live"`
}

// Outbound is one message and the players it is addressed to.
type Outbound struct {
	To  []string
	Msg any
}

// deliver encodes each message once and hands it to the registry for every
// recipient. Nothing here can fail the caller.
func deliver(reg *Registry, log *zap.Logger, outs []Outbound) {
	for _, o := range outs {
		payload, err := json.Marshal(o.Msg)
		if err != nil {
			log.Error("GAMES: Failed to encode message", zap.Error(err))
			continue
		}
		for _, id := range o.To {
			reg.Send(id, payload)
		}
	}
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
