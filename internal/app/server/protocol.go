package server

import (
	"encoding/json"
	"fmt"
)

// Inbound events.
const (
	EventJoinQueue  = "join-queue"
	EventLeaveQueue = "leave-queue"
	EventExitQueue  = "exit-queue"
	EventSetReady   = "set-ready"
	EventMatchReady = "match-ready"
	EventSubmitMove = "submit-move"
	EventMakeMove   = "make-move"
	EventSurrender  = "surrender"
	EventJoinGame   = "join-game"
	EventHeartbeat  = "heartbeat"
	EventEcho       = "echo"
	EventQueueSize  = "queue-size"
	EventDisconnect = "disconnect"
)

// Outbound events.
const (
	EventOnQueue              = "on-queue"
	EventMatchFound           = "match-found"
	EventOpponentReady        = "opponent-ready"
	EventGameStart            = "game-start"
	EventMoveMade             = "move-made"
	EventGameOver             = "game-over"
	EventMatchCancelled       = "match-cancelled-by-opponent"
	EventOpponentDisconnected = "opponent-disconnected"
	EventOpponentReconnected  = "opponent-reconnected"
	EventGameState            = "game-state"
	EventQueueExpired         = "queue-expired"
	EventNumPlayersOnLobby    = "num-players-on-lobby"
	EventHeartbeatAck         = "heartbeat-ack"
	EventError                = "error"
)

// payload is the envelope of every inbound message.
type payload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (p payload) decode(v any) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrInvalidPayload, p.Type)
	}
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, p.Type, err)
	}
	return nil
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(message{Type: event, Data: data})
}
