package chess

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrMalformedFEN = errors.New("malformed fen")

// Board is an immutable piece placement. Empty squares hold NoPiece.
type Board struct {
	squares [NumSquares]Piece
}

// Placement is one occupied square.
type Placement struct {
	Square Square
	Piece  Piece
}

func (b Board) Piece(sq Square) Piece {
	if !sq.Valid() {
		return NoPiece
	}
	return b.squares[sq]
}

func (b Board) Len() int {
	n := 0
	for _, p := range b.squares {
		if p != NoPiece {
			n++
		}
	}
	return n
}

// Occupied returns every placement ordered rank 8 to rank 1, file a to h.
func (b Board) Occupied() []Placement {
	out := make([]Placement, 0, 32)
	for r := Rank8; r >= Rank1; r-- {
		for f := FileA; f <= FileH; f++ {
			sq := NewSquare(f, r)
			if p := b.squares[sq]; p != NoPiece {
				out = append(out, Placement{Square: sq, Piece: p})
			}
		}
	}
	return out
}

// Placement serializes the board back into a FEN piece-placement field.
func (b Board) Placement() string {
	var sb strings.Builder
	for r := Rank8; r >= Rank1; r-- {
		empty := 0
		for f := FileA; f <= FileH; f++ {
			p := b.squares[NewSquare(f, r)]
			if p == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.Letter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > Rank1 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// ParseFEN validates the piece-placement field of fen and returns the board.
// Fields after the first whitespace are ignored, but at least one separator
// must be present.
func ParseFEN(fen string) (Board, error) {
	var b Board
	if strings.IndexFunc(fen, unicode.IsSpace) < 0 {
		return b, fmt.Errorf("%w: missing required fields", ErrMalformedFEN)
	}
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return b, fmt.Errorf("%w: missing required fields", ErrMalformedFEN)
	}

	rows := strings.Split(fields[0], "/")
	if len(rows) != 8 {
		return b, fmt.Errorf("%w: expected 8 ranks, got %d", ErrMalformedFEN, len(rows))
	}

	for i, row := range rows {
		rank := Rank8 - Rank(i)
		cols := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			switch {
			case c >= '1' && c <= '8':
				cols += int(c - '0')
			default:
				p, ok := pieceFromLetter(c)
				if !ok {
					return b, fmt.Errorf("%w: invalid character %q in rank %s", ErrMalformedFEN, rune(c), rank)
				}
				if cols >= 8 {
					return b, fmt.Errorf("%w: too many pieces in rank %s", ErrMalformedFEN, rank)
				}
				b.squares[NewSquare(File(cols), rank)] = p
				cols++
			}
			if cols > 8 {
				return b, fmt.Errorf("%w: rank %s exceeds 8 columns at character %d", ErrMalformedFEN, rank, j+1)
			}
		}
		if cols != 8 {
			return b, fmt.Errorf("%w: rank %s has %d columns, want 8", ErrMalformedFEN, rank, cols)
		}
	}
	return b, nil
}
