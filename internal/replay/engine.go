package replay

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

const standardStartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Game is the first game of a PGN text, reduced to what replay needs.
type Game struct {
	StartFEN string
	Moves    []Move
}

// Engine returns an engine whose cursors start at the game's initial
// position.
func (g *Game) Engine() Engine {
	if g == nil || g.StartFEN == "" || g.StartFEN == standardStartFEN {
		return StandardEngine{}
	}
	return StandardEngine{startFEN: g.StartFEN}
}

// ParsePGN parses the first game in text. Text the engine cannot read as a
// game fails with ErrInvalidGame; a game with zero moves is returned as is.
func ParsePGN(text string) (*Game, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty pgn", ErrInvalidGame)
	}
	opt, err := nchess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGame, err)
	}
	game := nchess.NewGame(opt)

	g := &Game{StartFEN: standardStartFEN}
	if positions := game.Positions(); len(positions) > 0 && positions[0] != nil {
		g.StartFEN = positions[0].String()
	}
	for _, mv := range game.Moves() {
		g.Moves = append(g.Moves, Move(mv.String()))
	}
	return g, nil
}

// StandardEngine replays UCI tokens with corentings/chess.
type StandardEngine struct {
	startFEN string
}

func (e StandardEngine) Start() Cursor {
	if e.startFEN != "" {
		if opt, err := nchess.FEN(e.startFEN); err == nil {
			return &gameCursor{game: nchess.NewGame(opt)}
		}
	}
	return &gameCursor{game: nchess.NewGame()}
}

type gameCursor struct {
	game *nchess.Game
}

func (c *gameCursor) Apply(m Move) error {
	return c.game.PushNotationMove(string(m), nchess.UCINotation{}, nil)
}

func (c *gameCursor) FEN() string { return c.game.FEN() }
