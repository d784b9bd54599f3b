package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

const Size = 8

// Side is both a player's side and the content of a board cell. None marks an empty cell.
type Side uint8

const (
	None Side = iota
	Black
	White
)

var ErrInvalidSide = fmt.Errorf("invalid side")

func (s Side) Opponent() Side {
	switch s {
	case Black:
		return White
	case White:
		return Black
	}
	return None
}

func (s Side) Valid() bool {
	return s == Black || s == White
}

func (s Side) String() string {
	switch s {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return ""
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	case "":
		return None, nil
	}
	return None, fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Coord struct {
	Row int `json:"row" dynamodbav:"Row"`
	Col int `json:"col" dynamodbav:"Col"`
}

func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Board is an 8x8 grid indexed [row][col].
type Board [Size][Size]Side

// NewBoard returns the starting position: black on the first and last rows,
// white on the first and last columns, corners empty.
func NewBoard() Board {
	var b Board
	for i := 1; i < Size-1; i++ {
		b[0][i] = Black
		b[Size-1][i] = Black
		b[i][0] = White
		b[i][Size-1] = White
	}
	return b
}

func (b *Board) At(c Coord) Side {
	if !c.InBounds() {
		return None
	}
	return b[c.Row][c.Col]
}

func (b *Board) Set(c Coord, s Side) {
	b[c.Row][c.Col] = s
}

func (b *Board) Count(side Side) int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] == side {
				n++
			}
		}
	}
	return n
}

// Apply moves the piece at from to to without validating it.
// It reports whether an opposing piece was captured.
func (b *Board) Apply(from, to Coord) bool {
	piece := b.At(from)
	captured := b.At(to) == piece.Opponent() && piece.Valid()
	b.Set(to, piece)
	b.Set(from, None)
	return captured
}

// Grid returns the board as rows of cell values (0 empty, 1 black, 2 white).
func (b *Board) Grid() [][]int {
	grid := make([][]int, Size)
	for r := 0; r < Size; r++ {
		grid[r] = make([]int, Size)
		for c := 0; c < Size; c++ {
			grid[r][c] = int(b[r][c])
		}
	}
	return grid
}

func BoardFromGrid(grid [][]int) (Board, error) {
	var b Board
	if len(grid) != Size {
		return b, fmt.Errorf("board must have %d rows, got %d", Size, len(grid))
	}
	for r, row := range grid {
		if len(row) != Size {
			return b, fmt.Errorf("board row %d must have %d cells, got %d", r, Size, len(row))
		}
		for c, v := range row {
			s := Side(v)
			if s != None && !s.Valid() {
				return b, fmt.Errorf("%w: cell (%d,%d) holds %d", ErrInvalidSide, r, c, v)
			}
			b[r][c] = s
		}
	}
	return b, nil
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Grid())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var grid [][]int
	if err := json.Unmarshal(data, &grid); err != nil {
		return err
	}
	v, err := BoardFromGrid(grid)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch b[r][c] {
			case Black:
				sb.WriteByte('B')
			case White:
				sb.WriteByte('W')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
