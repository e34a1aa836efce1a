package model

// Color is a player's side on the board
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Valid reports whether c is a known side
func (c Color) Valid() bool {
	return c == ColorWhite || c == ColorBlack
}

// Opponent returns the other side
func (c Color) Opponent() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// Point is a board location. Points 1-24 are on the board.
type Point int

const (
	// BarPoint is the origin used when entering a piece from the bar
	BarPoint Point = 0

	MinBoardPoint Point = 1
	MaxBoardPoint Point = 24

	whiteBearOff Point = 0
	blackBearOff Point = 25
)

// OnBoard reports whether p is one of the 24 board points
func (p Point) OnBoard() bool {
	return p >= MinBoardPoint && p <= MaxBoardPoint
}

// BearOffTarget returns the destination the server expects for bearing off
func BearOffTarget(c Color) Point {
	if c == ColorBlack {
		return blackBearOff
	}
	return whiteBearOff
}

// Board is the server's authoritative board snapshot
type Board struct {
	Points map[Point][]Color `json:"points"`
	Bar    map[Color]int     `json:"bar"`
	Home   map[Color]int     `json:"home"`
}

// NewBoard returns an empty board
func NewBoard() Board {
	return Board{
		Points: make(map[Point][]Color),
		Bar:    map[Color]int{ColorWhite: 0, ColorBlack: 0},
		Home:   map[Color]int{ColorWhite: 0, ColorBlack: 0},
	}
}

// Owner returns the color occupying p, if any
func (b Board) Owner(p Point) (Color, bool) {
	pieces := b.Points[p]
	if len(pieces) == 0 {
		return "", false
	}
	return pieces[0], true
}

// Holds reports whether p has at least one piece of color c
func (b Board) Holds(p Point, c Color) bool {
	owner, ok := b.Owner(p)
	return ok && owner == c
}

// Reserve returns how many of c's pieces are on the bar
func (b Board) Reserve(c Color) int {
	return b.Bar[c]
}

// Count returns the number of pieces on p
func (b Board) Count(p Point) int {
	return len(b.Points[p])
}

// Clone returns a deep copy
func (b Board) Clone() Board {
	out := NewBoard()
	for p, pieces := range b.Points {
		out.Points[p] = append([]Color(nil), pieces...)
	}
	for c, n := range b.Bar {
		out.Bar[c] = n
	}
	for c, n := range b.Home {
		out.Home[c] = n
	}
	return out
}
