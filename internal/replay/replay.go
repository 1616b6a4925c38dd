package replay

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGame = errors.New("invalid game")
	ErrEmptyGame   = errors.New("game has no moves")
)

// Move is an opaque token understood only by the Engine that produced it.
type Move string

// Cursor is a position the engine can advance. The replayer never inspects
// it beyond these two calls.
type Cursor interface {
	Apply(m Move) error
	FEN() string
}

// Engine hands out cursors at the standard initial position.
type Engine interface {
	Start() Cursor
}

type Replayer struct {
	engine Engine
}

func NewReplayer(engine Engine) *Replayer {
	if engine == nil {
		engine = StandardEngine{}
	}
	return &Replayer{engine: engine}
}

// Replay applies moves in order and returns the FEN after each one, or only
// the last one when finalOnly is set. A game without moves has no per-move
// output; its final position is the start position.
func (r *Replayer) Replay(moves []Move, finalOnly bool) ([]string, error) {
	if len(moves) == 0 && !finalOnly {
		return nil, ErrEmptyGame
	}

	cur := r.engine.Start()
	var fens []string
	if !finalOnly {
		fens = make([]string, 0, len(moves))
	}
	for i, mv := range moves {
		if err := cur.Apply(mv); err != nil {
			return nil, fmt.Errorf("%w: move %d (%s): %v", ErrInvalidGame, i+1, mv, err)
		}
		if !finalOnly {
			fens = append(fens, cur.FEN())
		}
	}
	if finalOnly {
		return []string{cur.FEN()}, nil
	}
	return fens, nil
}
