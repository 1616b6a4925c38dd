package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/park285/chess-render/internal/chess"
	yaml "gopkg.in/yaml.v3"
)

var ErrInvalidTheme = errors.New("invalid theme")

// Geometry is the read-only pixel data a board render needs. Centers are the
// pixel centres of each square on Board.
type Geometry struct {
	Name      string
	BoardPath string
	Board     image.Image
	Sprites   map[chess.Piece]image.Image
	Centers   map[chess.Square]image.Point
}

func (g *Geometry) String() string {
	if g == nil {
		return "Theme(<nil>)"
	}
	return fmt.Sprintf("Theme(name='%s', board_image='%s')", g.Name, g.BoardPath)
}

// Document is the on-disk theme layout shared by the JSON and YAML forms.
type Document struct {
	Theme Spec `json:"theme" yaml:"theme"`
}

type Spec struct {
	Name        string            `json:"name" yaml:"name"`
	BoardImage  string            `json:"boardImage" yaml:"boardImage"`
	PieceImages map[string]string `json:"pieceImages" yaml:"pieceImages"`
	Squares     map[string]Point  `json:"squares" yaml:"squares"`
	PieceSize   int               `json:"pieceSize,omitempty" yaml:"pieceSize,omitempty"`
}

type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Validate checks that spec names every piece and every square exactly once
// and nothing else.
func Validate(spec Spec) error {
	var missing []string
	if strings.TrimSpace(spec.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(spec.BoardImage) == "" {
		missing = append(missing, "boardImage")
	}
	if len(spec.PieceImages) == 0 {
		missing = append(missing, "pieceImages")
	}
	if len(spec.Squares) == 0 {
		missing = append(missing, "squares")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidTheme, strings.Join(missing, ", "))
	}

	for id, file := range spec.PieceImages {
		if _, err := chess.ParsePieceID(id); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTheme, err)
		}
		if strings.TrimSpace(file) == "" {
			return fmt.Errorf("%w: empty image for piece %s", ErrInvalidTheme, id)
		}
	}
	for _, p := range chess.AllPieces {
		if _, ok := spec.PieceImages[p.String()]; !ok {
			return fmt.Errorf("%w: no image for piece %s", ErrInvalidTheme, p)
		}
	}

	for name := range spec.Squares {
		if _, err := chess.ParseSquare(name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTheme, err)
		}
	}
	if len(spec.Squares) != chess.NumSquares {
		var absent []string
		for sq := chess.Square(0); sq < chess.NumSquares; sq++ {
			if _, ok := spec.Squares[sq.String()]; !ok {
				absent = append(absent, sq.String())
			}
		}
		sort.Strings(absent)
		return fmt.Errorf("%w: no coordinates for squares %s", ErrInvalidTheme, strings.Join(absent, ","))
	}
	if spec.PieceSize < 0 {
		return fmt.Errorf("%w: negative pieceSize", ErrInvalidTheme)
	}
	return nil
}

// Decode parses a theme document. ext selects YAML (".yaml", ".yml");
// anything else is read as JSON.
func Decode(data []byte, ext string) (Spec, error) {
	var doc Document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Spec{}, fmt.Errorf("%w: %v", ErrInvalidTheme, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return Spec{}, fmt.Errorf("%w: %v", ErrInvalidTheme, err)
		}
	}
	if err := Validate(doc.Theme); err != nil {
		return Spec{}, err
	}
	return doc.Theme, nil
}

// Load reads, validates and decodes every asset of the theme document at path.
func Load(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme %s: %w", path, err)
	}
	spec, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("theme %s: %w", path, err)
	}
	return Build(spec, filepath.Dir(path))
}

// Build resolves spec's asset paths against baseDir and decodes them.
func Build(spec Spec, baseDir string) (*Geometry, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	boardPath := resolve(baseDir, spec.BoardImage)
	board, err := loadImage(boardPath, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: board image: %v", ErrInvalidTheme, err)
	}

	g := &Geometry{
		Name:      spec.Name,
		BoardPath: boardPath,
		Board:     board,
		Sprites:   make(map[chess.Piece]image.Image, len(chess.AllPieces)),
		Centers:   make(map[chess.Square]image.Point, chess.NumSquares),
	}

	for _, p := range chess.AllPieces {
		img, err := loadImage(resolve(baseDir, spec.PieceImages[p.String()]), spec.PieceSize)
		if err != nil {
			return nil, fmt.Errorf("%w: piece %s: %v", ErrInvalidTheme, p, err)
		}
		g.Sprites[p] = img
	}
	for name, pt := range spec.Squares {
		sq, _ := chess.ParseSquare(name)
		g.Centers[sq] = image.Pt(pt.X, pt.Y)
	}
	return g, nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" || baseDir == "." {
		return p
	}
	return filepath.Join(baseDir, p)
}
