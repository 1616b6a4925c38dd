package chess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	corechess "github.com/park285/chess-render/internal/chess"
	"github.com/park285/chess-render/internal/theme"
)

var boardColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}

func pieceColor(p corechess.Piece) color.RGBA {
	return color.RGBA{R: uint8(p) * 10, G: 255 - uint8(p)*10, B: 50, A: 255}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func squareCenter(sq corechess.Square) image.Point {
	return image.Pt(50+100*int(sq.File()), 50+100*(7-int(sq.Rank())))
}

// testGeometry is an 800x800 board with 100px squares and distinct 20x20
// sprites.
func testGeometry() *theme.Geometry {
	g := &theme.Geometry{
		Name:      "test",
		BoardPath: "board.png",
		Board:     solid(800, 800, boardColor),
		Sprites:   make(map[corechess.Piece]image.Image),
		Centers:   make(map[corechess.Square]image.Point),
	}
	for _, p := range corechess.AllPieces {
		g.Sprites[p] = solid(20, 20, pieceColor(p))
	}
	for sq := corechess.Square(0); sq < corechess.NumSquares; sq++ {
		g.Centers[sq] = squareCenter(sq)
	}
	return g
}

func mustParse(t *testing.T, fen string) corechess.Board {
	t.Helper()
	b, err := corechess.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return b
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestRenderStartPosition(t *testing.T) {
	g := testGeometry()
	board := mustParse(t, startFEN)

	img, err := NewCompositor().Render(board, g)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 800, 800) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}

	placed := 0
	for sq := corechess.Square(0); sq < corechess.NumSquares; sq++ {
		c := squareCenter(sq)
		p := board.Piece(sq)
		want := boardColor
		if p != corechess.NoPiece {
			want = pieceColor(p)
			placed++
			// sprite spans [c-10, c+10)
			if got := img.RGBAAt(c.X-10, c.Y-10); got != want {
				t.Fatalf("%s top-left: got %v want %v", sq, got, want)
			}
			if got := img.RGBAAt(c.X+9, c.Y+9); got != want {
				t.Fatalf("%s bottom-right: got %v want %v", sq, got, want)
			}
			if got := img.RGBAAt(c.X+10, c.Y+10); got != boardColor {
				t.Fatalf("%s outside sprite: got %v", sq, got)
			}
		}
		if got := img.RGBAAt(c.X, c.Y); got != want {
			t.Fatalf("%s centre: got %v want %v", sq, got, want)
		}
	}
	if placed != 32 {
		t.Fatalf("expected 32 placements, got %d", placed)
	}
}

func TestRenderOddSpriteFloorsOffset(t *testing.T) {
	g := testGeometry()
	g.Sprites[corechess.WhiteKing] = solid(7, 5, pieceColor(corechess.WhiteKing))
	board := mustParse(t, "8/8/8/8/8/8/8/4K3 w - - 0 1")

	img, err := NewCompositor().Render(board, g)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	c := squareCenter(corechess.NewSquare(corechess.FileE, corechess.Rank1))
	want := pieceColor(corechess.WhiteKing)
	// origin = (c.X-3, c.Y-2)
	if got := img.RGBAAt(c.X-3, c.Y-2); got != want {
		t.Fatalf("origin pixel: got %v want %v", got, want)
	}
	if got := img.RGBAAt(c.X-4, c.Y-2); got != boardColor {
		t.Fatalf("left of origin: got %v", got)
	}
	if got := img.RGBAAt(c.X+3, c.Y+2); got != want {
		t.Fatalf("last pixel: got %v want %v", got, want)
	}
	if got := img.RGBAAt(c.X+4, c.Y+2); got != boardColor {
		t.Fatalf("right of sprite: got %v", got)
	}
}

func TestRenderTransparentPixelsKeepBackground(t *testing.T) {
	g := testGeometry()
	sprite := solid(20, 20, pieceColor(corechess.BlackQueen))
	sprite.SetRGBA(0, 0, color.RGBA{})
	g.Sprites[corechess.BlackQueen] = sprite
	board := mustParse(t, "3q4/8/8/8/8/8/8/8 b - - 0 1")

	img, err := NewCompositor().Render(board, g)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	c := squareCenter(corechess.NewSquare(corechess.FileD, corechess.Rank8))
	if got := img.RGBAAt(c.X-10, c.Y-10); got != boardColor {
		t.Fatalf("transparent pixel overwrote background: %v", got)
	}
	if got := img.RGBAAt(c.X-9, c.Y-10); got != pieceColor(corechess.BlackQueen) {
		t.Fatalf("opaque pixel missing: %v", got)
	}
}

func TestRenderMissingAsset(t *testing.T) {
	board := mustParse(t, startFEN)

	noSprite := testGeometry()
	delete(noSprite.Sprites, corechess.BlackKnight)
	if _, err := NewCompositor().Render(board, noSprite); !errors.Is(err, ErrMissingAsset) {
		t.Fatalf("missing sprite: got %v", err)
	}

	noSquare := testGeometry()
	delete(noSquare.Centers, corechess.NewSquare(corechess.FileA, corechess.Rank1))
	if _, err := NewCompositor().Render(board, noSquare); !errors.Is(err, ErrMissingAsset) {
		t.Fatalf("missing square: got %v", err)
	}

	// an empty square without coordinates is never looked up
	empty := testGeometry()
	delete(empty.Centers, corechess.NewSquare(corechess.FileE, corechess.Rank4))
	if _, err := NewCompositor().Render(board, empty); err != nil {
		t.Fatalf("unused square: %v", err)
	}
}

func TestRenderDoesNotMutateBackground(t *testing.T) {
	g := testGeometry()
	bg := g.Board.(*image.RGBA)
	before := append([]uint8(nil), bg.Pix...)

	if _, err := NewCompositor().Render(mustParse(t, startFEN), g); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(before, bg.Pix) {
		t.Fatalf("background image was modified")
	}
}

func TestRenderPNGDeterministic(t *testing.T) {
	g := testGeometry()
	board := mustParse(t, startFEN)
	r := NewCompositor()

	a, err := r.RenderPNG(context.Background(), board, g)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	b, err := r.RenderPNG(context.Background(), board, g)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("renders differ")
	}
	img, err := png.Decode(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 800 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, board, g); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
