package chess

import "fmt"

type Color int8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "w"
	case Black:
		return "b"
	default:
		return "-"
	}
}

type Kind int8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{NoKind: '-', Pawn: 'p', Knight: 'n', Bishop: 'b', Rook: 'r', Queen: 'q', King: 'k'}

func (k Kind) String() string {
	if k < NoKind || int(k) >= len(kindLetters) {
		return "-"
	}
	return string(kindLetters[k])
}

// Piece is a closed set of the twelve (color, kind) pairs. The zero value is
// NoPiece and marks an empty square.
type Piece int8

const (
	NoPiece Piece = iota
	WhitePawn
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
)

// AllPieces lists every drawable piece in a fixed order.
var AllPieces = []Piece{
	WhitePawn, WhiteKnight, WhiteBishop, WhiteRook, WhiteQueen, WhiteKing,
	BlackPawn, BlackKnight, BlackBishop, BlackRook, BlackQueen, BlackKing,
}

func NewPiece(c Color, k Kind) Piece {
	if k <= NoKind || k > King {
		return NoPiece
	}
	switch c {
	case White:
		return Piece(k)
	case Black:
		return Piece(int8(k) + 6)
	default:
		return NoPiece
	}
}

func (p Piece) Valid() bool { return p > NoPiece && p <= BlackKing }

func (p Piece) Color() Color {
	switch {
	case p >= WhitePawn && p <= WhiteKing:
		return White
	case p >= BlackPawn && p <= BlackKing:
		return Black
	default:
		return NoColor
	}
}

func (p Piece) Kind() Kind {
	switch p.Color() {
	case White:
		return Kind(p)
	case Black:
		return Kind(p - 6)
	default:
		return NoKind
	}
}

// String returns the theme identifier, e.g. "wp" or "bk".
func (p Piece) String() string {
	if !p.Valid() {
		return "--"
	}
	return p.Color().String() + p.Kind().String()
}

// Letter returns the FEN letter: uppercase for white, lowercase for black.
func (p Piece) Letter() byte {
	if !p.Valid() {
		return 0
	}
	l := kindLetters[p.Kind()]
	if p.Color() == White {
		l -= 'a' - 'A'
	}
	return l
}

func pieceFromLetter(c byte) (Piece, bool) {
	color := Black
	if c >= 'A' && c <= 'Z' {
		color = White
		c += 'a' - 'A'
	}
	for k := Pawn; k <= King; k++ {
		if kindLetters[k] == c {
			return NewPiece(color, k), true
		}
	}
	return NoPiece, false
}

// ParsePieceID parses a theme identifier such as "wq".
func ParsePieceID(id string) (Piece, error) {
	if len(id) != 2 {
		return NoPiece, fmt.Errorf("invalid piece id %q", id)
	}
	var color Color
	switch id[0] {
	case 'w':
		color = White
	case 'b':
		color = Black
	default:
		return NoPiece, fmt.Errorf("invalid piece color in %q", id)
	}
	p, ok := pieceFromLetter(id[1])
	if !ok || id[1] < 'a' || id[1] > 'z' {
		return NoPiece, fmt.Errorf("invalid piece kind in %q", id)
	}
	return NewPiece(color, p.Kind()), nil
}
