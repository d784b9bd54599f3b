package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chess-vn/lines/internal/rules"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// Reason explains how a session ended.
type Reason string

const (
	ReasonConnected  Reason = "connected"
	ReasonBlocked    Reason = "blocked"
	ReasonSurrender  Reason = "surrender"
	ReasonDisconnect Reason = "disconnect"
	ReasonInternal   Reason = "internal"
	ReasonCancelled  Reason = "cancelled"
)

var (
	ErrInvalidState   = errors.New("action not allowed in current session state")
	ErrWrongTurn      = errors.New("not this side's turn")
	ErrIllegalMove    = errors.New("illegal move")
	ErrNotParticipant = errors.New("player is not part of this session")
	ErrSessionOver    = errors.New("session is over")
)

type Participant struct {
	PlayerId     string `json:"playerId"`
	ConnectionId string `json:"-"`
	Rank         int    `json:"rank"`
	Ready        bool   `json:"ready"`
}

type MoveRecord struct {
	Side      rules.Side  `json:"side"`
	From      rules.Coord `json:"from"`
	To        rules.Coord `json:"to"`
	Captured  bool        `json:"captured"`
	Timestamp time.Time   `json:"timestamp"`
}

type MoveResult struct {
	Record  MoveRecord
	Outcome rules.Outcome
	State   State
}

// Disconnect describes what a disconnect did to the session.
type Disconnect struct {
	Cancelled bool
	Abandoned bool
	State     State
}

// Session is the authoritative state of one match. All methods are safe for
// concurrent use; each transition happens under the session lock.
type Session struct {
	id      string
	players [2]Participant
	status  Status
	turn    rules.Side
	board   rules.Board
	history []MoveRecord
	winner  rules.Side
	reason  Reason

	cancelled bool
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	now func() time.Time
	mu  sync.Mutex
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a waiting session. Black is the first player to move.
func New(id string, black, white Participant, opts ...Option) *Session {
	s := &Session{
		id:     id,
		status: StatusWaiting,
		turn:   rules.Black,
		board:  rules.NewBoard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	black.Ready, white.Ready = false, false
	s.players = [2]Participant{black, white}
	s.createdAt = s.now()
	return s
}

func slot(side rules.Side) int {
	if side == rules.White {
		return 1
	}
	return 0
}

func sideOfSlot(i int) rules.Side {
	if i == 1 {
		return rules.White
	}
	return rules.Black
}

func (s *Session) Id() string { return s.id }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Live reports whether the session still accepts actions.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked()
}

func (s *Session) liveLocked() bool {
	return !s.cancelled && !s.status.Terminal()
}

func (s *Session) SideOf(playerId string) (rules.Side, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.players {
		if p.PlayerId == playerId {
			return sideOfSlot(i), true
		}
	}
	return rules.None, false
}

func (s *Session) SideOfConnection(connectionId string) (rules.Side, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if connectionId == "" {
		return rules.None, false
	}
	for i, p := range s.players {
		if p.ConnectionId == connectionId {
			return sideOfSlot(i), true
		}
	}
	return rules.None, false
}

// SetReady marks side ready. The session activates once both sides are ready;
// repeating the call for a side that is already ready changes nothing.
func (s *Session) SetReady(side rules.Side) (bool, error) {
	if !side.Valid() {
		return false, rules.ErrInvalidSide
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.status != StatusWaiting {
		return false, fmt.Errorf("%w: set ready while %s", ErrInvalidState, s.statusLocked())
	}
	s.players[slot(side)].Ready = true
	if !s.players[0].Ready || !s.players[1].Ready {
		return false, nil
	}
	s.status = StatusActive
	s.startedAt = s.now()
	s.board = rules.NewBoard()
	s.turn = rules.Black
	return true, nil
}

// ApplyMove validates and applies a move for side. A rejected move leaves the
// session untouched.
func (s *Session) ApplyMove(side rules.Side, from, to rules.Coord) (MoveResult, error) {
	if !side.Valid() {
		return MoveResult{}, rules.ErrInvalidSide
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.status != StatusActive {
		return MoveResult{}, fmt.Errorf("%w: move while %s", ErrInvalidState, s.statusLocked())
	}
	if s.turn != side {
		return MoveResult{}, ErrWrongTurn
	}
	if err := rules.CheckMove(&s.board, from, to, side); err != nil {
		return MoveResult{}, fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}

	record := MoveRecord{
		Side:      side,
		From:      from,
		To:        to,
		Captured:  s.board.Apply(from, to),
		Timestamp: s.now(),
	}
	s.history = append(s.history, record)
	s.turn = side.Opponent()

	outcome := rules.CheckEndState(&s.board, side)
	if outcome.Finished {
		reason := ReasonConnected
		if outcome.Blocked {
			reason = ReasonBlocked
		}
		s.conclude(outcome.Winner, reason)
	}
	return MoveResult{Record: record, Outcome: outcome, State: s.snapshotLocked()}, nil
}

// Surrender ends an active session in favour of the other side.
func (s *Session) Surrender(side rules.Side) (State, error) {
	if !side.Valid() {
		return State{}, rules.ErrInvalidSide
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.status != StatusActive {
		return State{}, fmt.Errorf("%w: surrender while %s", ErrInvalidState, s.statusLocked())
	}
	s.conclude(side.Opponent(), ReasonSurrender)
	return s.snapshotLocked(), nil
}

// HandleDisconnect cancels a waiting session or abandons an active one in
// favour of the side that stayed.
func (s *Session) HandleDisconnect(side rules.Side) (Disconnect, error) {
	if !side.Valid() {
		return Disconnect{}, rules.ErrInvalidSide
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.cancelled || s.status.Terminal():
		return Disconnect{}, ErrSessionOver
	case s.status == StatusWaiting:
		s.cancelLocked()
		return Disconnect{Cancelled: true, State: s.snapshotLocked()}, nil
	default:
		s.conclude(side.Opponent(), ReasonDisconnect)
		return Disconnect{Abandoned: true, State: s.snapshotLocked()}, nil
	}
}

// Cancel drops a session that never became active.
func (s *Session) Cancel() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.status != StatusWaiting {
		return State{}, fmt.Errorf("%w: cancel while %s", ErrInvalidState, s.statusLocked())
	}
	s.cancelLocked()
	return s.snapshotLocked(), nil
}

// Abandon ends a live session with winner, used when the session can no
// longer continue consistently.
func (s *Session) Abandon(winner rules.Side, reason Reason) (State, error) {
	if !winner.Valid() {
		return State{}, rules.ErrInvalidSide
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked() {
		return State{}, ErrSessionOver
	}
	if s.status == StatusWaiting {
		s.cancelLocked()
		return s.snapshotLocked(), nil
	}
	s.conclude(winner, reason)
	return s.snapshotLocked(), nil
}

// Rebind attaches a new connection to a participant. Only connection metadata
// changes; board, turn and status are left alone.
func (s *Session) Rebind(playerId, connectionId string) (rules.Side, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := -1
	for idx, p := range s.players {
		if p.PlayerId == playerId {
			i = idx
		}
	}
	if i < 0 {
		return rules.None, ErrNotParticipant
	}
	if !s.liveLocked() {
		return rules.None, ErrSessionOver
	}
	s.players[i].ConnectionId = connectionId
	return sideOfSlot(i), nil
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) cancelLocked() {
	s.cancelled = true
	s.reason = ReasonCancelled
	s.endedAt = s.now()
}

// conclude is the single terminal transition. Surrender and natural wins
// finish the game, everything else abandons it.
func (s *Session) conclude(winner rules.Side, reason Reason) {
	if s.status.Terminal() {
		return
	}
	switch reason {
	case ReasonConnected, ReasonBlocked, ReasonSurrender:
		s.status = StatusFinished
	default:
		s.status = StatusAbandoned
	}
	s.winner = winner
	s.reason = reason
	s.endedAt = s.now()
}

func (s *Session) statusLocked() string {
	if s.cancelled {
		return string(ReasonCancelled)
	}
	return string(s.status)
}
