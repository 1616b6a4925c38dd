package chess

import "fmt"

type File int8

const (
	FileA File = iota
	FileB
	FileC
	FileD
	FileE
	FileF
	FileG
	FileH
)

func (f File) String() string { return string(rune('a' + f)) }

type Rank int8

const (
	Rank1 Rank = iota
	Rank2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
)

func (r Rank) String() string { return string(rune('1' + r)) }

// Square indexes the board as rank*8+file, a1 = 0 and h8 = 63.
type Square int8

const NumSquares = 64

func NewSquare(f File, r Rank) Square { return Square(int8(r)*8 + int8(f)) }

func (sq Square) File() File { return File(sq % 8) }
func (sq Square) Rank() Rank { return Rank(sq / 8) }

func (sq Square) Valid() bool { return sq >= 0 && sq < NumSquares }

func (sq Square) String() string {
	if !sq.Valid() {
		return "??"
	}
	return sq.File().String() + sq.Rank().String()
}

func ParseSquare(name string) (Square, error) {
	if len(name) != 2 || name[0] < 'a' || name[0] > 'h' || name[1] < '1' || name[1] > '8' {
		return 0, fmt.Errorf("invalid square %q", name)
	}
	return NewSquare(File(name[0]-'a'), Rank(name[1]-'1')), nil
}
