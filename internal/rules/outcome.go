package rules

// PiecesConnected reports whether every piece of side belongs to a single group
// under 8-directional adjacency. Zero or one piece counts as connected.
func PiecesConnected(b *Board, side Side) bool {
	total := 0
	var start Coord
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == side {
				if total == 0 {
					start = Coord{r, c}
				}
				total++
			}
		}
	}
	if total <= 1 {
		return true
	}

	var visited [Size][Size]bool
	visited[start.Row][start.Col] = true
	stack := []Coord{start}
	reached := 0
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		for _, d := range directions {
			next := Coord{cur.Row + d[0], cur.Col + d[1]}
			if !next.InBounds() || visited[next.Row][next.Col] || b.At(next) != side {
				continue
			}
			visited[next.Row][next.Col] = true
			stack = append(stack, next)
		}
	}
	return reached == total
}

type Outcome struct {
	Finished bool
	Winner   Side
	// Blocked is set when the game ended because the side to move had no legal move.
	Blocked bool
}

// CheckEndState evaluates the board right after mover has moved.
//
// Both sides connected: mover wins. One side connected: that side wins.
// Otherwise the side to move next loses if it has no legal move.
func CheckEndState(b *Board, mover Side) Outcome {
	next := mover.Opponent()
	moverConnected := PiecesConnected(b, mover)
	nextConnected := PiecesConnected(b, next)

	switch {
	case moverConnected:
		return Outcome{Finished: true, Winner: mover}
	case nextConnected:
		return Outcome{Finished: true, Winner: next}
	case !HasAnyLegalMove(b, next):
		return Outcome{Finished: true, Winner: mover, Blocked: true}
	}
	return Outcome{}
}
