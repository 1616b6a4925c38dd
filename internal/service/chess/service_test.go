package chess

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	corechess "github.com/park285/chess-render/internal/chess"
	"github.com/park285/chess-render/internal/replay"
	"github.com/park285/chess-render/internal/service/cache"
	"github.com/park285/chess-render/internal/theme"
)

const ruyLopez = `[Event "Casual"]
[White "A"]
[Black "B"]
[Result "*"]

1. e4 e5 2. Nf3 Nc6 3. Bb5 a6 *
`

type countingRenderer struct {
	BoardRenderer
	calls atomic.Int32
}

func (r *countingRenderer) RenderPNG(ctx context.Context, board corechess.Board, g *theme.Geometry) ([]byte, error) {
	r.calls.Add(1)
	return r.BoardRenderer.RenderPNG(ctx, board, g)
}

type failingSink struct{}

func (failingSink) Save(context.Context, string, []byte) (string, error) {
	return "", ErrPersistenceFailure
}

// selectiveSink fails for one output name and delegates the rest.
type selectiveSink struct {
	Sink
	failName string
}

func (s selectiveSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if name == s.failName {
		return "", ErrPersistenceFailure
	}
	return s.Sink.Save(ctx, name, data)
}

func newTestService(t *testing.T, cfg Config) (*Service, string) {
	t.Helper()
	out := t.TempDir()
	svc, err := NewService(NewCompositor(), testGeometry(), NewFileSink(out), nil, nil, cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, out
}

func listPNG(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), imageExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	sink := NewFileSink(t.TempDir())
	if _, err := NewService(nil, testGeometry(), sink, nil, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil renderer")
	}
	if _, err := NewService(NewCompositor(), nil, sink, nil, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil geometry")
	}
	if _, err := NewService(NewCompositor(), testGeometry(), nil, nil, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}

func TestRenderFEN(t *testing.T) {
	svc, out := newTestService(t, Config{})
	path, err := svc.RenderFEN(context.Background(), startFEN, "start")
	if err != nil {
		t.Fatalf("RenderFEN: %v", err)
	}
	if path != filepath.Join(out, "start.png") {
		t.Fatalf("unexpected path %s", path)
	}
	if got := listPNG(t, out); len(got) != 1 || got[0] != "start.png" {
		t.Fatalf("unexpected outputs %v", got)
	}

	_, err = svc.RenderFEN(context.Background(), "not a fen/at all", "bad")
	if !errors.Is(err, corechess.ErrMalformedFEN) {
		t.Fatalf("expected ErrMalformedFEN, got %v", err)
	}
	if got := listPNG(t, out); len(got) != 1 {
		t.Fatalf("malformed input produced output: %v", got)
	}
}

func TestRenderFENFile(t *testing.T) {
	svc, out := newTestService(t, Config{})
	in := filepath.Join(t.TempDir(), "pos.fen")
	writeFile(t, in, startFEN+"\n")

	if _, err := svc.RenderFENFile(context.Background(), in, "from_file"); err != nil {
		t.Fatalf("RenderFENFile: %v", err)
	}
	if got := listPNG(t, out); len(got) != 1 || got[0] != "from_file.png" {
		t.Fatalf("unexpected outputs %v", got)
	}

	_, err := svc.RenderFENFile(context.Background(), filepath.Join(t.TempDir(), "missing.fen"), "x")
	if !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestRenderPGNPerMove(t *testing.T) {
	svc, out := newTestService(t, Config{Workers: 3})
	outputs, err := svc.RenderPGN(context.Background(), ruyLopez, false)
	if err != nil {
		t.Fatalf("RenderPGN: %v", err)
	}
	if len(outputs) != 6 {
		t.Fatalf("expected 6 outputs, got %d", len(outputs))
	}
	for i, p := range outputs {
		want := filepath.Join(out, "move_"+string(rune('1'+i))+".png")
		if p != want {
			t.Fatalf("output %d: got %s want %s", i, p, want)
		}
	}
	if got := listPNG(t, out); len(got) != 6 {
		t.Fatalf("expected 6 files, got %v", got)
	}
}

func TestRenderPGNFinalOnlyMatchesLastMove(t *testing.T) {
	perMove, perOut := newTestService(t, Config{})
	final, finalOut := newTestService(t, Config{})

	if _, err := perMove.RenderPGN(context.Background(), ruyLopez, false); err != nil {
		t.Fatalf("RenderPGN: %v", err)
	}
	outputs, err := final.RenderPGN(context.Background(), ruyLopez, true)
	if err != nil {
		t.Fatalf("RenderPGN final: %v", err)
	}
	if len(outputs) != 1 || filepath.Base(outputs[0]) != "final_position.png" {
		t.Fatalf("unexpected outputs %v", outputs)
	}

	last, err := os.ReadFile(filepath.Join(perOut, "move_6.png"))
	if err != nil {
		t.Fatalf("read move_6: %v", err)
	}
	fin, err := os.ReadFile(filepath.Join(finalOut, "final_position.png"))
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if string(last) != string(fin) {
		t.Fatalf("final position differs from last per-move image")
	}
}

func TestRenderPGNErrors(t *testing.T) {
	svc, out := newTestService(t, Config{})
	ctx := context.Background()

	if _, err := svc.RenderPGN(ctx, "", false); !errors.Is(err, replay.ErrInvalidGame) {
		t.Fatalf("empty text: got %v", err)
	}
	if _, err := svc.RenderPositions(ctx, nil, FinalPosition()); !errors.Is(err, replay.ErrEmptyGame) {
		t.Fatalf("no positions: got %v", err)
	}
	if _, err := svc.RenderPGNFile(ctx, filepath.Join(t.TempDir(), "none.pgn"), false); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("missing file: got %v", err)
	}
	if got := listPNG(t, out); len(got) != 0 {
		t.Fatalf("failed renders produced outputs: %v", got)
	}
}

func TestRenderPGNWithoutMoves(t *testing.T) {
	svc, out := newTestService(t, Config{})
	ctx := context.Background()
	const noMoves = "[Event \"x\"]\n[Result \"*\"]\n\n*"

	if _, err := svc.RenderPGN(ctx, noMoves, false); !errors.Is(err, replay.ErrEmptyGame) {
		t.Fatalf("per-move: expected ErrEmptyGame, got %v", err)
	}

	outs, err := svc.RenderPGN(ctx, noMoves, true)
	if err != nil {
		t.Fatalf("final-only: %v", err)
	}
	if len(outs) != 1 || filepath.Base(outs[0]) != "final_position.png" {
		t.Fatalf("unexpected outputs %v", outs)
	}
	got, err := os.ReadFile(outs[0])
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want, err := svc.EncodeFEN(ctx, startFEN)
	if err != nil {
		t.Fatalf("EncodeFEN: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("final position is not the initial position")
	}
	if names := listPNG(t, out); len(names) != 1 {
		t.Fatalf("unexpected files %v", names)
	}
}

func TestRenderPositionsReturnsSavedOutputsOnFailure(t *testing.T) {
	out := t.TempDir()
	sink := selectiveSink{Sink: NewFileSink(out), failName: "move_2"}
	svc, err := NewService(NewCompositor(), testGeometry(), sink, nil, nil, Config{Workers: 1}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	outs, err := svc.RenderPGN(ctx, ruyLopez, false)
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
	onDisk := listPNG(t, out)
	if len(onDisk) == 0 || onDisk[0] != "move_1.png" {
		t.Fatalf("expected move_1.png on disk, got %v", onDisk)
	}
	if len(outs) != len(onDisk) {
		t.Fatalf("returned %v but disk has %v", outs, onDisk)
	}
	for i, path := range outs {
		if filepath.Base(path) != onDisk[i] {
			t.Fatalf("returned %v but disk has %v", outs, onDisk)
		}
	}

	records, err := svc.Repository().RecentRecords(ctx, 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("RecentRecords: %v %v", records, err)
	}
	if !records[0].Failed() || len(records[0].Outputs) != len(onDisk) {
		t.Fatalf("ledger outputs %v do not match disk %v", records[0].Outputs, onDisk)
	}
}

func TestRenderPositionsRejectsDuplicateNames(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.RenderPositions(context.Background(), []string{startFEN, startFEN}, SingleName("same"))
	if !errors.Is(err, ErrDuplicateOutput) {
		t.Fatalf("expected ErrDuplicateOutput, got %v", err)
	}
}

func TestRenderPositionsPersistenceFailure(t *testing.T) {
	svc, err := NewService(NewCompositor(), testGeometry(), failingSink{}, nil, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.RenderFEN(context.Background(), startFEN, "x"); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
}

func TestRenderFolder(t *testing.T) {
	svc, out := newTestService(t, Config{Workers: 2})
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.pgn"), "1. e4 e5 *")
	writeFile(t, filepath.Join(in, "b.PGN"), "1. d4 d5 2. c4 *")
	writeFile(t, filepath.Join(in, "broken.pgn"), "1. e4 e4 *")
	writeFile(t, filepath.Join(in, "notes.txt"), "ignored")
	if err := os.Mkdir(filepath.Join(in, "nested.pgn"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	report, err := svc.RenderFolder(context.Background(), in, true)
	if err != nil {
		t.Fatalf("RenderFolder: %v", err)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 inputs, got %d", len(report.Outcomes))
	}
	if report.Succeeded() != 2 {
		t.Fatalf("expected 2 successes, got %d", report.Succeeded())
	}
	failed := report.Failed()
	if len(failed) != 1 || filepath.Base(failed[0].Input) != "broken.pgn" {
		t.Fatalf("unexpected failures %+v", failed)
	}
	if got := listPNG(t, out); len(got) != 2 || got[0] != "a.png" || got[1] != "b.png" {
		t.Fatalf("unexpected outputs %v", got)
	}

	records, err := svc.Repository().RecordsByRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("RecordsByRun: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 ledger records, got %d", len(records))
	}
	failedRecords := 0
	for _, r := range records {
		if r.Mode != ModeFolder {
			t.Fatalf("unexpected mode %s", r.Mode)
		}
		if r.Failed() {
			failedRecords++
		}
	}
	if failedRecords != 1 {
		t.Fatalf("expected 1 failed record, got %d", failedRecords)
	}
}

func TestRenderFolderPerMoveNaming(t *testing.T) {
	svc, out := newTestService(t, Config{})
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "game.pgn"), "1. e4 e5 *")

	report, err := svc.RenderFolder(context.Background(), in, false)
	if err != nil {
		t.Fatalf("RenderFolder: %v", err)
	}
	if len(report.Images()) != 2 {
		t.Fatalf("expected 2 images, got %v", report.Images())
	}
	if got := listPNG(t, out); len(got) != 2 || got[0] != "game_move_1.png" || got[1] != "game_move_2.png" {
		t.Fatalf("unexpected outputs %v", got)
	}
}

func TestRenderFolderRejectsCollidingNames(t *testing.T) {
	svc, out := newTestService(t, Config{Workers: 2})
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "game.pgn"), "1. e4 e5 *")
	writeFile(t, filepath.Join(in, "game.PGN"), "1. d4 d5 *")
	writeFile(t, filepath.Join(in, "other.pgn"), "1. c4 *")

	report, err := svc.RenderFolder(context.Background(), in, true)
	if err != nil {
		t.Fatalf("RenderFolder: %v", err)
	}
	if report.Succeeded() != 1 {
		t.Fatalf("expected 1 success, got %d", report.Succeeded())
	}
	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failed)
	}
	for _, o := range failed {
		if !errors.Is(o.Err, ErrDuplicateOutput) {
			t.Fatalf("%s: expected ErrDuplicateOutput, got %v", o.Input, o.Err)
		}
		if len(o.Outputs) != 0 {
			t.Fatalf("%s: colliding input produced %v", o.Input, o.Outputs)
		}
	}
	if got := listPNG(t, out); len(got) != 1 || got[0] != "other.png" {
		t.Fatalf("unexpected outputs %v", got)
	}

	records, err := svc.Repository().RecordsByRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("RecordsByRun: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 ledger records, got %d", len(records))
	}
}

func TestRenderFolderMissingDir(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	_, err := svc.RenderFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	if !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestEncodeFENUsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	cacheSvc := cache.NewCacheServiceFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute, "", nil)
	defer cacheSvc.Close()

	renderer := &countingRenderer{BoardRenderer: NewCompositor()}
	svc, err := NewService(renderer, testGeometry(), NewFileSink(t.TempDir()), cacheSvc, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx := context.Background()
	first, err := svc.EncodeFEN(ctx, startFEN)
	if err != nil {
		t.Fatalf("EncodeFEN: %v", err)
	}
	// same placement, different side to move
	second, err := svc.EncodeFEN(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b - - 5 9")
	if err != nil {
		t.Fatalf("EncodeFEN: %v", err)
	}
	if renderer.calls.Load() != 1 {
		t.Fatalf("expected 1 render, got %d", renderer.calls.Load())
	}
	if string(first) != string(second) {
		t.Fatalf("cached bytes differ")
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected one cache entry, got %v", mr.Keys())
	}
}

func TestEncodePGNMove(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	afterE4, err := svc.EncodePGN(ctx, ruyLopez, 1)
	if err != nil {
		t.Fatalf("EncodePGN: %v", err)
	}
	want, err := svc.EncodeFEN(ctx, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatalf("EncodeFEN: %v", err)
	}
	if string(afterE4) != string(want) {
		t.Fatalf("move 1 image differs from the position after e4")
	}

	if _, err := svc.EncodePGN(ctx, ruyLopez, 7); !errors.Is(err, ErrMoveOutOfRange) {
		t.Fatalf("expected ErrMoveOutOfRange, got %v", err)
	}
}

func TestRecentRecords(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()
	if _, err := svc.RenderFEN(ctx, startFEN, "one"); err != nil {
		t.Fatalf("RenderFEN: %v", err)
	}
	_, _ = svc.RenderFEN(ctx, "bad", "two")

	recent, err := svc.Repository().RecentRecords(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRecords: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if !recent[0].Failed() || recent[1].Failed() {
		t.Fatalf("unexpected ordering or status: %+v %+v", recent[0], recent[1])
	}
	if recent[1].Theme != "test" || len(recent[1].Outputs) != 1 {
		t.Fatalf("unexpected record %+v", recent[1])
	}
}
