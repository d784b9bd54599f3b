package server

import (
	"sync"
	"time"

	"github.com/chess-vn/lines/internal/rules"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/pkg/logging"
	"go.uber.org/zap"
)

type move struct {
	connectionId string
	playerId     string
	side         rules.Side
	from         rules.Coord
	to           rules.Coord
}

// match runs one session. Moves are drained by a single goroutine so
// submissions are applied strictly in arrival order.
type match struct {
	session *session.Session
	moveCh  chan move
	done    chan struct{}
	timer   *time.Timer

	moveHandler    func(*match, move)
	timeoutHandler func(*match)

	ended bool
	mu    sync.Mutex

	// saveMu orders writes of this match to the store.
	saveMu sync.Mutex
}

func newMatch(
	sess *session.Session,
	moveHandler func(*match, move),
	timeoutHandler func(*match),
) *match {
	return &match{
		session:        sess,
		moveCh:         make(chan move, 8),
		done:           make(chan struct{}),
		moveHandler:    moveHandler,
		timeoutHandler: timeoutHandler,
	}
}

func (m *match) id() string { return m.session.Id() }

func (m *match) start() {
	for {
		select {
		case <-m.done:
			return
		case mv := <-m.moveCh:
			m.moveHandler(m, mv)
		}
	}
}

// submit hands a move to the match goroutine. It fails once the match ended.
func (m *match) submit(mv move) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.moveCh <- mv:
		return true
	case <-m.done:
		return false
	}
}

// end stops the match goroutine and its timer. Only the first call returns
// true.
func (m *match) end() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return false
	}
	m.ended = true
	close(m.done)
	if m.timer != nil {
		m.timer.Stop()
	}
	return true
}

func (m *match) isEnded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// setTimer arms the ready timeout. The timeout handler only runs while the
// match is still going.
func (m *match) setTimer(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	if m.timer != nil {
		m.timer.Reset(d)
		logging.Debug("clock reset", zap.String("session_id", m.id()), zap.Duration("duration", d))
		return
	}
	m.timer = time.AfterFunc(d, func() {
		if m.isEnded() {
			return
		}
		m.timeoutHandler(m)
	})
	logging.Debug("clock set", zap.String("session_id", m.id()), zap.Duration("duration", d))
}

func (m *match) stopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
}
