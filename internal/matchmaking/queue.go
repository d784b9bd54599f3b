package matchmaking

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("queue is full")
	ErrCorrupted = errors.New("queue index diverged from heap")
)

// Entry is a waiting player.
type Entry struct {
	PlayerId     string
	ConnectionId string
	Rank         int
	EnqueuedAt   time.Time
}

// before reports whether a has priority over b: higher rank first, then earlier arrival.
func (a Entry) before(b Entry) bool {
	if a.Rank != b.Rank {
		return a.Rank > b.Rank
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

// entryHeap implements heap.Interface and keeps index in step with every swap.
type entryHeap struct {
	entries []Entry
	index   map[string]int
}

func (h *entryHeap) Len() int           { return len(h.entries) }
func (h *entryHeap) Less(i, j int) bool { return h.entries[i].before(h.entries[j]) }

func (h *entryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.index[h.entries[i].PlayerId] = i
	h.index[h.entries[j].PlayerId] = j
}

func (h *entryHeap) Push(x any) {
	e := x.(Entry)
	h.index[e.PlayerId] = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *entryHeap) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries[n-1] = Entry{}
	h.entries = h.entries[:n-1]
	delete(h.index, e.PlayerId)
	return e
}

// Queue is a rank-ordered matchmaking queue, safe for concurrent use.
type Queue struct {
	mu     sync.RWMutex
	heap   entryHeap
	byConn map[string]string

	checks bool
	now    func() time.Time
}

type Option func(*Queue)

// WithConsistencyChecks makes every mutation verify the heap against its
// indexes and panic on divergence.
func WithConsistencyChecks(enabled bool) Option {
	return func(q *Queue) { q.checks = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		heap:   entryHeap{index: make(map[string]int)},
		byConn: make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Insert adds e, or only re-links the connection when the player is already
// queued. It reports whether a new entry was added.
func (q *Queue) Insert(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()
	return q.insertLocked(e)
}

// InsertBounded behaves like Insert but refuses new players once the queue
// holds capacity entries. Re-linking an existing player always succeeds.
func (q *Queue) InsertBounded(e Entry, capacity int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()
	if _, ok := q.heap.index[e.PlayerId]; !ok && capacity > 0 && q.heap.Len() >= capacity {
		return false, ErrQueueFull
	}
	return q.insertLocked(e), nil
}

func (q *Queue) insertLocked(e Entry) bool {
	if i, ok := q.heap.index[e.PlayerId]; ok {
		cur := &q.heap.entries[i]
		if cur.ConnectionId != e.ConnectionId {
			delete(q.byConn, cur.ConnectionId)
			cur.ConnectionId = e.ConnectionId
			if e.ConnectionId != "" {
				q.byConn[e.ConnectionId] = e.PlayerId
			}
		}
		return false
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = q.now()
	}
	heap.Push(&q.heap, e)
	if e.ConnectionId != "" {
		q.byConn[e.ConnectionId] = e.PlayerId
	}
	return true
}

func (q *Queue) HasPlayer(playerId string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.heap.index[playerId]
	return ok
}

// Get returns the queued entry of playerId.
func (q *Queue) Get(playerId string) (Entry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i, ok := q.heap.index[playerId]
	if !ok {
		return Entry{}, false
	}
	return q.heap.entries[i], true
}

// Peek returns the highest-priority entry without removing it.
func (q *Queue) Peek() (Entry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.heap.Len() == 0 {
		return Entry{}, false
	}
	return q.heap.entries[0], true
}

func (q *Queue) RemoveByPlayerId(playerId string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()
	return q.removeLocked(playerId)
}

func (q *Queue) RemoveByConnectionId(connectionId string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()
	playerId, ok := q.byConn[connectionId]
	if !ok {
		return Entry{}, false
	}
	return q.removeLocked(playerId)
}

// removeLocked swaps the element with the last one and restores heap order
// from its old position in both directions.
func (q *Queue) removeLocked(playerId string) (Entry, bool) {
	i, ok := q.heap.index[playerId]
	if !ok {
		return Entry{}, false
	}
	e := heap.Remove(&q.heap, i).(Entry)
	delete(q.byConn, e.ConnectionId)
	return e, true
}

func (q *Queue) popLocked() (Entry, bool) {
	if q.heap.Len() == 0 {
		return Entry{}, false
	}
	e := heap.Pop(&q.heap).(Entry)
	delete(q.byConn, e.ConnectionId)
	return e, true
}

func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.heap.Len()
}

// GetAll returns a copy of the queued entries in heap order.
func (q *Queue) GetAll() []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Entry, len(q.heap.entries))
	copy(out, q.heap.entries)
	return out
}

// RemoveStale drops every entry that has waited longer than olderThan.
func (q *Queue) RemoveStale(olderThan time.Duration) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()

	cutoff := q.now().Add(-olderThan)
	var stale []string
	for _, e := range q.heap.entries {
		if e.EnqueuedAt.Before(cutoff) {
			stale = append(stale, e.PlayerId)
		}
	}
	removed := make([]Entry, 0, len(stale))
	for _, id := range stale {
		if e, ok := q.removeLocked(id); ok {
			removed = append(removed, e)
		}
	}
	return removed
}

// Validate checks the heap against both lookup maps.
func (q *Queue) Validate() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.validateLocked()
}

func (q *Queue) validateLocked() error {
	h := &q.heap
	if len(h.entries) != len(h.index) {
		return fmt.Errorf("%w: %d entries, %d tracked players", ErrCorrupted, len(h.entries), len(h.index))
	}
	conns := 0
	for i, e := range h.entries {
		if idx, ok := h.index[e.PlayerId]; !ok || idx != i {
			return fmt.Errorf("%w: player %s at %d indexed at %d", ErrCorrupted, e.PlayerId, i, idx)
		}
		if e.ConnectionId != "" {
			conns++
			if q.byConn[e.ConnectionId] != e.PlayerId {
				return fmt.Errorf("%w: connection %s not mapped to %s", ErrCorrupted, e.ConnectionId, e.PlayerId)
			}
		}
		if i > 0 && h.Less(i, (i-1)/2) {
			return fmt.Errorf("%w: heap order broken at %d", ErrCorrupted, i)
		}
	}
	if conns != len(q.byConn) {
		return fmt.Errorf("%w: %d connections tracked for %d entries", ErrCorrupted, len(q.byConn), conns)
	}
	return nil
}

func (q *Queue) check() {
	if !q.checks {
		return
	}
	if err := q.validateLocked(); err != nil {
		panic(err)
	}
}
