package chess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	corechess "github.com/park285/chess-render/internal/chess"
	"github.com/park285/chess-render/internal/domain"
	"github.com/park285/chess-render/internal/replay"
	"github.com/park285/chess-render/internal/theme"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrMoveOutOfRange   = errors.New("move number out of range")
	ErrDuplicateOutput  = errors.New("duplicate output name")
)

const (
	ModeFEN    = "fen"
	ModePGN    = "pgn"
	ModeFolder = "folder"
)

// RenderCache stores encoded images by key. Implementations must be safe for
// concurrent use.
type RenderCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

type Config struct {
	Workers    int
	Extensions []string
}

type Service struct {
	renderer BoardRenderer
	geometry *theme.Geometry
	sink     Sink
	cache    RenderCache
	repo     Repository
	cfg      Config
	logger   *zap.Logger
}

func NewService(renderer BoardRenderer, geometry *theme.Geometry, sink Sink, cacheSvc RenderCache, repo Repository, cfg Config, logger *zap.Logger) (*Service, error) {
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if geometry == nil {
		return nil, fmt.Errorf("theme geometry is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("output sink is required")
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".pgn"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		renderer: renderer,
		geometry: geometry,
		sink:     sink,
		cache:    cacheSvc,
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (s *Service) Geometry() *theme.Geometry { return s.geometry }

func (s *Service) Repository() Repository { return s.repo }

// RenderFEN renders one position and saves it as name.
func (s *Service) RenderFEN(ctx context.Context, fen, name string) (string, error) {
	start := time.Now()
	outputs, err := s.RenderPositions(ctx, []string{fen}, SingleName(name))
	s.record(ctx, uuid.NewString(), ModeFEN, fen, outputs, err, start)
	if err != nil {
		return "", err
	}
	return outputs[0], nil
}

func (s *Service) RenderFENFile(ctx context.Context, path, name string) (string, error) {
	start := time.Now()
	data, err := readInput(path)
	if err != nil {
		s.record(ctx, uuid.NewString(), ModeFEN, path, nil, err, start)
		return "", err
	}
	outputs, err := s.RenderPositions(ctx, []string{strings.TrimSpace(string(data))}, SingleName(name))
	s.record(ctx, uuid.NewString(), ModeFEN, path, outputs, err, start)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return outputs[0], nil
}

// RenderPGN renders the first game of text: one final_position image, or
// move_1..move_n.
func (s *Service) RenderPGN(ctx context.Context, text string, finalOnly bool) ([]string, error) {
	start := time.Now()
	outputs, err := s.renderGame(ctx, text, finalOnly, PGNNaming(finalOnly))
	s.record(ctx, uuid.NewString(), ModePGN, "<inline>", outputs, err, start)
	return outputs, err
}

func (s *Service) RenderPGNFile(ctx context.Context, path string, finalOnly bool) ([]string, error) {
	start := time.Now()
	outputs, err := s.renderGameFile(ctx, path, finalOnly, PGNNaming(finalOnly))
	s.record(ctx, uuid.NewString(), ModePGN, path, outputs, err, start)
	return outputs, err
}

func (s *Service) renderGameFile(ctx context.Context, path string, finalOnly bool, naming Naming) ([]string, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	outputs, err := s.renderGame(ctx, string(data), finalOnly, naming)
	if err != nil {
		return outputs, fmt.Errorf("%s: %w", path, err)
	}
	return outputs, nil
}

func (s *Service) renderGame(ctx context.Context, text string, finalOnly bool, naming Naming) ([]string, error) {
	fens, err := ReplayPGN(text, finalOnly)
	if err != nil {
		return nil, err
	}
	return s.RenderPositions(ctx, fens, naming)
}

// ReplayPGN parses text and returns its FEN snapshots.
func ReplayPGN(text string, finalOnly bool) ([]string, error) {
	game, err := replay.ParsePGN(text)
	if err != nil {
		return nil, err
	}
	return replay.NewReplayer(game.Engine()).Replay(game.Moves, finalOnly)
}

// RenderPositions renders and persists every FEN exactly once. Names are
// fixed by index before any work is dispatched, so the worker pool cannot
// reorder them. On failure the paths already saved are returned with the
// error, in position order.
func (s *Service) RenderPositions(ctx context.Context, fens []string, naming Naming) ([]string, error) {
	if len(fens) == 0 {
		return nil, replay.ErrEmptyGame
	}

	names := make([]string, len(fens))
	seen := make(map[string]int, len(fens))
	for i := range fens {
		names[i] = naming.Name(i + 1)
		if prev, ok := seen[names[i]]; ok {
			return nil, fmt.Errorf("%w: %q for positions %d and %d", ErrDuplicateOutput, names[i], prev, i+1)
		}
		seen[names[i]] = i + 1
	}

	outputs := make([]string, len(fens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, fen := range fens {
		g.Go(func() error {
			data, err := s.EncodeFEN(gctx, fen)
			if err != nil {
				return fmt.Errorf("position %d (%s): %w", i+1, names[i], err)
			}
			out, err := s.sink.Save(gctx, names[i], data)
			if err != nil {
				return fmt.Errorf("position %d (%s): %w", i+1, names[i], err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return savedOutputs(outputs), err
	}
	return outputs, nil
}

func savedOutputs(outputs []string) []string {
	var saved []string
	for _, out := range outputs {
		if out != "" {
			saved = append(saved, out)
		}
	}
	return saved
}

// EncodeFEN parses fen and returns the PNG bytes of its board, consulting the
// render cache when one is configured.
func (s *Service) EncodeFEN(ctx context.Context, fen string) ([]byte, error) {
	board, err := corechess.ParseFEN(fen)
	if err != nil {
		return nil, err
	}

	key := renderCacheKey(s.geometry.Name, board.Placement())
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("render cache lookup failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return data, nil
		}
	}

	data, err := s.renderer.RenderPNG(ctx, board, s.geometry)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data); err != nil {
			s.logger.Warn("render cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return data, nil
}

// EncodePGN returns the PNG bytes of the final position (move <= 0) or of the
// position after the given 1-based move.
func (s *Service) EncodePGN(ctx context.Context, text string, move int) ([]byte, error) {
	fens, err := ReplayPGN(text, move <= 0)
	if err != nil {
		return nil, err
	}
	idx := len(fens) - 1
	if move > 0 {
		if move > len(fens) {
			return nil, fmt.Errorf("%w: %d (game has %d moves)", ErrMoveOutOfRange, move, len(fens))
		}
		idx = move - 1
	}
	return s.EncodeFEN(ctx, fens[idx])
}

func (s *Service) record(ctx context.Context, runID, mode, input string, outputs []string, err error, start time.Time) {
	rec := &domain.RenderRecord{
		RunID:     runID,
		Mode:      mode,
		Input:     input,
		Theme:     s.geometry.Name,
		Outputs:   outputs,
		Duration:  time.Since(start),
		CreatedAt: time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
		s.logger.Warn("render failed",
			zap.String("run_id", runID),
			zap.String("mode", mode),
			zap.String("input", input),
			zap.Error(err),
		)
	} else {
		s.logger.Info("render completed",
			zap.String("run_id", runID),
			zap.String("mode", mode),
			zap.String("input", input),
			zap.Int("images", len(outputs)),
			zap.Duration("elapsed", rec.Duration),
		)
	}
	if _, rerr := s.repo.InsertRecord(ctx, rec); rerr != nil {
		s.logger.Warn("failed to record render", zap.String("run_id", runID), zap.Error(rerr))
	}
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func renderCacheKey(themeName, placement string) string {
	sum := sha256.Sum256([]byte(themeName + "\x00" + placement))
	return hex.EncodeToString(sum[:])
}
