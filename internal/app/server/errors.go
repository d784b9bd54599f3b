package server

import (
	"errors"

	"github.com/chess-vn/lines/internal/matchmaking"
	"github.com/chess-vn/lines/internal/rules"
	"github.com/chess-vn/lines/internal/session"
)

const (
	StatusInvalidPayload   = "INVALID_PAYLOAD"
	StatusQueueFull        = "QUEUE_FULL"
	StatusAlreadyQueued    = "ALREADY_QUEUED"
	StatusAlreadyInSession = "ALREADY_IN_SESSION"
	StatusSessionNotFound  = "SESSION_NOT_FOUND"
	StatusNotAParticipant  = "NOT_A_PARTICIPANT"
	StatusForbidden        = "FORBIDDEN"
	StatusInvalidState     = "INVALID_STATE"
	StatusWrongTurn        = "WRONG_TURN"
	StatusWrongSide        = "WRONG_SIDE"
	StatusInvalidMove      = "INVALID_MOVE"
	StatusStorageFailure   = "STORAGE_FAILURE"
	StatusUnknownEvent     = "UNKNOWN_EVENT"
	StatusInternal         = "INTERNAL"
)

var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrForbidden         = errors.New("player id does not match connection")
	ErrAlreadyQueued     = errors.New("player is already queued")
	ErrAlreadyInSession  = errors.New("player is already in a session")
	ErrNotQueued         = errors.New("player is not queued")
	ErrSessionNotFound   = errors.New("session not found")
	ErrWrongSide         = errors.New("side does not belong to player")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrUnauthorized      = errors.New("unauthorized")

	errPairBusy = errors.New("matched player already in a session")
)

// statusFor maps an error to the code sent in error events.
func statusFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, rules.ErrInvalidSide):
		return StatusInvalidPayload
	case errors.Is(err, matchmaking.ErrQueueFull):
		return StatusQueueFull
	case errors.Is(err, ErrAlreadyQueued):
		return StatusAlreadyQueued
	case errors.Is(err, ErrAlreadyInSession):
		return StatusAlreadyInSession
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, session.ErrGameNotFound):
		return StatusSessionNotFound
	case errors.Is(err, session.ErrNotParticipant):
		return StatusNotAParticipant
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return StatusForbidden
	case errors.Is(err, session.ErrInvalidState), errors.Is(err, session.ErrSessionOver), errors.Is(err, ErrNotQueued):
		return StatusInvalidState
	case errors.Is(err, session.ErrWrongTurn):
		return StatusWrongTurn
	case errors.Is(err, ErrWrongSide):
		return StatusWrongSide
	case errors.Is(err, session.ErrIllegalMove):
		return StatusInvalidMove
	case errors.Is(err, session.ErrStorage):
		return StatusStorageFailure
	case errors.Is(err, ErrUnknownEvent):
		return StatusUnknownEvent
	}
	return StatusInternal
}
