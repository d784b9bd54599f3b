package matchmaking

// Pair is the result of a successful match. First had the higher priority.
type Pair struct {
	First  Entry
	Second Entry
}

// TryMatch removes the two best distinct players from q. With fewer than two
// players the queue is left as it was and false is returned.
//
// Pairing is greedy: it takes the best two available, it does not look for a
// globally better assignment.
func TryMatch(q *Queue) (Pair, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()

	first, ok := q.popLocked()
	if !ok {
		return Pair{}, false
	}
	for {
		second, ok := q.popLocked()
		if !ok {
			q.insertLocked(first)
			return Pair{}, false
		}
		if second.PlayerId != first.PlayerId {
			return Pair{First: first, Second: second}, true
		}
	}
}

// Requeue puts both players of a pair back with their original priority, used
// when a match cannot be turned into a session. Empty entries are skipped.
func Requeue(q *Queue, p Pair) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.check()
	for _, e := range []Entry{p.First, p.Second} {
		if e.PlayerId == "" {
			continue
		}
		if _, queued := q.heap.index[e.PlayerId]; !queued {
			q.insertLocked(e)
		}
	}
}
