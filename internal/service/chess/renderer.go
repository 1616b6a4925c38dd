package chess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	imagedraw "image/draw"
	"image/png"

	corechess "github.com/park285/chess-render/internal/chess"
	"github.com/park285/chess-render/internal/theme"
)

var ErrMissingAsset = errors.New("missing theme asset")

type BoardRenderer interface {
	Render(board corechess.Board, geometry *theme.Geometry) (*image.RGBA, error)
	RenderPNG(ctx context.Context, board corechess.Board, geometry *theme.Geometry) ([]byte, error)
}

type compositor struct {
	encoder png.Encoder
}

func NewCompositor() BoardRenderer {
	return &compositor{encoder: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

// Render copies the theme background and pastes each piece sprite centred on
// its square. Transparent sprite pixels leave the background untouched.
func (c *compositor) Render(board corechess.Board, geometry *theme.Geometry) (*image.RGBA, error) {
	if geometry == nil || geometry.Board == nil {
		return nil, fmt.Errorf("%w: board background", ErrMissingAsset)
	}

	bg := geometry.Board.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, bg.Dx(), bg.Dy()))
	imagedraw.Draw(img, img.Bounds(), geometry.Board, bg.Min, imagedraw.Src)

	if err := drawPieces(img, board, geometry); err != nil {
		return nil, err
	}
	return img, nil
}

func (c *compositor) RenderPNG(ctx context.Context, board corechess.Board, geometry *theme.Geometry) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := c.Render(board, geometry)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := c.encoder.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func drawPieces(dst imagedraw.Image, board corechess.Board, geometry *theme.Geometry) error {
	for _, pl := range board.Occupied() {
		center, ok := geometry.Centers[pl.Square]
		if !ok {
			return fmt.Errorf("%w: no coordinate for square %s", ErrMissingAsset, pl.Square)
		}
		sprite, ok := geometry.Sprites[pl.Piece]
		if !ok || sprite == nil {
			return fmt.Errorf("%w: no sprite for piece %s on %s", ErrMissingAsset, pl.Piece, pl.Square)
		}
		imagedraw.Draw(dst, spriteRect(center, sprite.Bounds().Size()), sprite, sprite.Bounds().Min, imagedraw.Over)
	}
	return nil
}

// spriteRect centres a sprite of the given size on center, flooring odd
// halves.
func spriteRect(center image.Point, size image.Point) image.Rectangle {
	origin := image.Pt(center.X-size.X/2, center.Y-size.Y/2)
	return image.Rectangle{Min: origin, Max: origin.Add(size)}
}
