package rules

import "errors"

var (
	ErrOutOfBounds    = errors.New("coordinates out of bounds")
	ErrNotOwnPiece    = errors.New("no own piece at origin")
	ErrZeroMove       = errors.New("origin equals destination")
	ErrNotAligned     = errors.New("move is not straight or diagonal")
	ErrWrongDistance  = errors.New("distance does not match pieces on line")
	ErrJumpsOpponent  = errors.New("move jumps over an opposing piece")
	ErrOwnDestination = errors.New("destination holds an own piece")
)

var directions = [8][2]int{
	{-1, 0}, {1, 0},
	{0, -1}, {0, 1},
	{-1, -1}, {-1, 1},
	{1, -1}, {1, 1},
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CheckMove returns nil when side may move the piece at from to to, otherwise the
// first rule the move breaks.
func CheckMove(b *Board, from, to Coord, side Side) error {
	if !from.InBounds() || !to.InBounds() {
		return ErrOutOfBounds
	}
	if !side.Valid() || b.At(from) != side {
		return ErrNotOwnPiece
	}
	if from == to {
		return ErrZeroMove
	}

	dRow, dCol := to.Row-from.Row, to.Col-from.Col
	if dRow != 0 && dCol != 0 && abs(dRow) != abs(dCol) {
		return ErrNotAligned
	}
	stepRow, stepCol := sign(dRow), sign(dCol)

	distance := max(abs(dRow), abs(dCol))
	if distance != lineCount(b, from, stepRow, stepCol) {
		return ErrWrongDistance
	}

	opponent := side.Opponent()
	for cur := (Coord{from.Row + stepRow, from.Col + stepCol}); cur != to; cur = (Coord{cur.Row + stepRow, cur.Col + stepCol}) {
		if b.At(cur) == opponent {
			return ErrJumpsOpponent
		}
	}
	if b.At(to) == side {
		return ErrOwnDestination
	}
	return nil
}

// ValidateMove reports whether the move is legal for side.
func ValidateMove(b *Board, from, to Coord, side Side) bool {
	return CheckMove(b, from, to, side) == nil
}

// lineCount counts occupied cells on the whole line through origin along the
// given axis, origin included, walking outwards in both directions.
func lineCount(b *Board, origin Coord, stepRow, stepCol int) int {
	n := 0
	if b.At(origin) != None {
		n++
	}
	for _, k := range [2]int{1, -1} {
		cur := Coord{origin.Row + k*stepRow, origin.Col + k*stepCol}
		for cur.InBounds() {
			if b.At(cur) != None {
				n++
			}
			cur = Coord{cur.Row + k*stepRow, cur.Col + k*stepCol}
		}
	}
	return n
}

// HasAnyLegalMove probes every direction from every piece of side until it runs
// off the board and stops at the first legal destination.
func HasAnyLegalMove(b *Board, side Side) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] != side {
				continue
			}
			from := Coord{r, c}
			for _, d := range directions {
				for to := (Coord{r + d[0], c + d[1]}); to.InBounds(); to = (Coord{to.Row + d[0], to.Col + d[1]}) {
					if ValidateMove(b, from, to, side) {
						return true
					}
				}
			}
		}
	}
	return false
}

// LegalMoves lists every legal destination of the piece at from.
func LegalMoves(b *Board, from Coord) []Coord {
	side := b.At(from)
	if !side.Valid() {
		return nil
	}
	var moves []Coord
	for _, d := range directions {
		for to := (Coord{from.Row + d[0], from.Col + d[1]}); to.InBounds(); to = (Coord{to.Row + d[0], to.Col + d[1]}) {
			if ValidateMove(b, from, to, side) {
				moves = append(moves, to)
			}
		}
	}
	return moves
}
