package theme

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type spriteCacheKey struct {
	path string
	size int
}

var (
	spriteCache   = map[spriteCacheKey]image.Image{}
	spriteCacheMu sync.RWMutex
)

// loadImage decodes the image at path. size > 0 rasterises SVGs at size×size
// and rescales raster images that are not already that size.
func loadImage(path string, size int) (image.Image, error) {
	key := spriteCacheKey{path: path, size: size}

	spriteCacheMu.RLock()
	if img, ok := spriteCache[key]; ok {
		spriteCacheMu.RUnlock()
		return img, nil
	}
	spriteCacheMu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", path, err)
	}

	var img image.Image
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		img, err = rasterizeSVG(data, size)
		if err != nil {
			return nil, fmt.Errorf("parse svg %s: %w", path, err)
		}
	} else {
		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode asset %s: %w", path, err)
		}
		img = toRGBA(decoded, size)
	}

	spriteCacheMu.Lock()
	spriteCache[key] = img
	spriteCacheMu.Unlock()

	return img, nil
}

func rasterizeSVG(data []byte, size int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, err
	}

	w, h := size, size
	if size <= 0 {
		w = int(icon.ViewBox.W)
		h = int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg has no usable size")
	}

	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}

// toRGBA normalises decoded images to a zero-origin RGBA buffer, scaling to
// size×size when requested.
func toRGBA(src image.Image, size int) *image.RGBA {
	b := src.Bounds()
	if size > 0 && (b.Dx() != size || b.Dy() != size) {
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		return dst
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill:000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: 000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: 000000"), []byte("stroke:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stop-color: #"), []byte("stop-color:#"))
	return fixed
}
