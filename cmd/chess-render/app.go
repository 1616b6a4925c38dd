package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/park285/chess-render/internal/adapter/chesspresenter"
	"github.com/park285/chess-render/internal/config"
	"github.com/park285/chess-render/internal/httpapi"
	"github.com/park285/chess-render/internal/msgcat"
	"github.com/park285/chess-render/internal/obslog"
	"github.com/park285/chess-render/internal/renderbuilder"
	svcchess "github.com/park285/chess-render/internal/service/chess"
	"github.com/park285/chess-render/internal/theme"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	defaultFENName   = "position"
	defaultRemoteURL = "http://localhost:8080"
)

// errBatchFailures marks a folder batch whose report was already printed.
var errBatchFailures = errors.New("some games failed to render")

type app struct {
	stdout io.Writer
	stderr io.Writer

	presenter *chesspresenter.Presenter
	cfg       *config.AppConfig
	cfgErr    error
	deps      *renderbuilder.Deps
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	err := a.command().Run(ctx, args)
	if err == nil {
		return 0
	}
	if errors.Is(err, errBatchFailures) {
		return 1
	}
	if a.presenter == nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	_ = a.presenter.Error(chesspresenter.ToErrorResponse(err))
	return 1
}

func (a *app) command() *cli.Command {
	finalOnly := &cli.BoolFlag{
		Name:    "final-only",
		Aliases: []string{"f"},
		Usage:   "render only the final position",
	}
	name := &cli.StringFlag{
		Name:    "name",
		Aliases: []string{"n"},
		Usage:   "output file name without extension",
	}

	return &cli.Command{
		Name:      "chess-render",
		Usage:     "Render chessboard images from FEN positions and PGN games",
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "theme", Aliases: []string{"t"}, Usage: "theme document (JSON or YAML), overrides THEME_PATH"},
			&cli.StringFlag{Name: "fallback-theme", Usage: "theme used when --theme cannot be loaded"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory, overrides OUTPUT_DIR"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "parallel render workers"},
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON"},
		},
		Before: a.before,
		Commands: []*cli.Command{
			{
				Name:      "fen",
				Usage:     "render a FEN string",
				ArgsUsage: "<fen>",
				Flags:     []cli.Flag{name},
				Action: func(ctx context.Context, c *cli.Command) error {
					fen, err := joinedArgs(c, "fen")
					if err != nil {
						return err
					}
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					out, err := svc.RenderFEN(ctx, fen, nameOr(c.String("name"), defaultFENName))
					if err != nil {
						return err
					}
					return a.presenter.Saved([]string{out})
				},
			},
			{
				Name:      "fen-file",
				Usage:     "render the FEN stored in a file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{name},
				Action: func(ctx context.Context, c *cli.Command) error {
					path, err := singleArg(c, "path")
					if err != nil {
						return err
					}
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					out, err := svc.RenderFENFile(ctx, path, nameOr(c.String("name"), baseName(path)))
					if err != nil {
						return err
					}
					return a.presenter.Saved([]string{out})
				},
			},
			{
				Name:      "pgn",
				Usage:     "render a PGN game given as text",
				ArgsUsage: "<pgn>",
				Flags:     []cli.Flag{finalOnly},
				Action: func(ctx context.Context, c *cli.Command) error {
					text, err := joinedArgs(c, "pgn")
					if err != nil {
						return err
					}
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					outs, err := svc.RenderPGN(ctx, text, c.Bool("final-only"))
					if err != nil {
						return err
					}
					return a.presenter.Saved(outs)
				},
			},
			{
				Name:      "pgn-file",
				Usage:     "render the first game of a PGN file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{finalOnly},
				Action: func(ctx context.Context, c *cli.Command) error {
					path, err := singleArg(c, "path")
					if err != nil {
						return err
					}
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					outs, err := svc.RenderPGNFile(ctx, path, c.Bool("final-only"))
					if err != nil {
						return err
					}
					return a.presenter.Saved(outs)
				},
			},
			{
				Name:      "pgn-folder",
				Usage:     "render every PGN file in a folder",
				ArgsUsage: "<dir>",
				Flags:     []cli.Flag{finalOnly},
				Action: func(ctx context.Context, c *cli.Command) error {
					dir, err := singleArg(c, "dir")
					if err != nil {
						return err
					}
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					report, err := svc.RenderFolder(ctx, dir, c.Bool("final-only"))
					if err != nil {
						return err
					}
					if err := a.presenter.Batch(chesspresenter.ToDTOBatchReport(report)); err != nil {
						return err
					}
					if len(report.Failed()) > 0 {
						return errBatchFailures
					}
					return nil
				},
			},
			{
				Name:      "theme",
				Usage:     "load and validate a theme document",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, c *cli.Command) error {
					path, err := singleArg(c, "path")
					if err != nil {
						return err
					}
					g, err := theme.Load(path)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(a.stdout, g.String())
					return err
				},
			},
			{
				Name:  "history",
				Usage: "list recent renders from the ledger",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of records"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					records, err := svc.Repository().RecentRecords(ctx, int(c.Int("limit")))
					if err != nil {
						return err
					}
					return a.presenter.Records(chesspresenter.ToDTORecords(records))
				},
			},
			{
				Name:  "serve",
				Usage: "serve the HTTP render API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides HTTP_ADDR"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := a.service(ctx, c)
					if err != nil {
						return err
					}
					addr := nameOr(c.String("addr"), a.cfg.HTTPAddr)
					srv := httpapi.NewServer(svc, svc.Geometry().Name, obslog.L())
					return srv.ListenAndServe(ctx, addr)
				},
			},
			a.remoteCommand(),
		},
	}
}

func (a *app) remoteCommand() *cli.Command {
	server := &cli.StringFlag{Name: "server", Usage: "render API base URL", Value: defaultRemoteURL}
	return &cli.Command{
		Name:  "remote",
		Usage: "render through a running render API",
		Commands: []*cli.Command{
			{
				Name:      "fen",
				Usage:     "render a FEN string remotely",
				ArgsUsage: "<fen>",
				Flags:     []cli.Flag{server, &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "output file name without extension"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					fen, err := joinedArgs(c, "fen")
					if err != nil {
						return err
					}
					data, err := httpapi.NewClient(c.String("server")).RenderFEN(ctx, fen)
					if err != nil {
						return err
					}
					return a.save(ctx, c, nameOr(c.String("name"), defaultFENName), data)
				},
			},
			{
				Name:      "pgn-file",
				Usage:     "render one position of a PGN file remotely",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					server,
					&cli.IntFlag{Name: "move", Aliases: []string{"m"}, Usage: "1-based move number; 0 renders the final position"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					path, err := singleArg(c, "path")
					if err != nil {
						return err
					}
					text, err := os.ReadFile(path)
					if err != nil {
						if errors.Is(err, os.ErrNotExist) {
							return fmt.Errorf("%w: %s", svcchess.ErrResourceNotFound, path)
						}
						return err
					}
					move := int(c.Int("move"))
					data, err := httpapi.NewClient(c.String("server")).RenderPGN(ctx, string(text), move)
					if err != nil {
						return err
					}
					name := baseName(path)
					if move > 0 {
						name = fmt.Sprintf("%s_move_%d", name, move)
					}
					return a.save(ctx, c, name, data)
				},
			},
		},
	}
}

// before loads the environment configuration with flag overrides and builds
// the presenter from its message settings. A configuration error is kept
// for the commands that need it, so `theme` still works.
func (a *app) before(ctx context.Context, c *cli.Command) (context.Context, error) {
	a.cfg, a.cfgErr = loadConfig(c)

	var cat *msgcat.Catalog
	if a.cfgErr == nil {
		var err error
		cat, err = msgcat.New(a.cfg.MessageLocale, a.cfg.MessagesDir)
		if err != nil {
			obslog.L().Warn("message catalog unavailable, using built-in text", zap.Error(err))
			cat = nil
		}
	}
	a.presenter = chesspresenter.NewPresenter(a.stdout, a.stderr, chesspresenter.NewFormatter(cat), c.Bool("json"))
	return ctx, nil
}

func loadConfig(c *cli.Command) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(c.String("theme")); v != "" {
		cfg.ThemePath = v
	}
	if v := strings.TrimSpace(c.String("fallback-theme")); v != "" {
		cfg.FallbackThemePath = v
	}
	if v := strings.TrimSpace(c.String("out")); v != "" {
		cfg.OutputDir = v
	}
	if n := int(c.Int("workers")); n > 0 {
		cfg.Workers = n
	}
	return cfg, nil
}

// service builds the render service once from the loaded configuration.
func (a *app) service(ctx context.Context, c *cli.Command) (*svcchess.Service, error) {
	if a.deps != nil {
		return a.deps.Service, nil
	}
	if a.cfgErr != nil {
		return nil, a.cfgErr
	}
	deps, err := renderbuilder.New(ctx, a.cfg, obslog.L())
	if err != nil {
		return nil, err
	}
	a.deps = deps
	return deps.Service, nil
}

// save writes an image fetched from a remote server into the configured
// output directory.
func (a *app) save(ctx context.Context, c *cli.Command, name string, data []byte) error {
	if a.cfgErr != nil {
		return a.cfgErr
	}
	out, err := svcchess.NewFileSink(a.cfg.OutputDir).Save(ctx, name, data)
	if err != nil {
		return err
	}
	return a.presenter.Saved([]string{out})
}

func (a *app) close() {
	if a.deps != nil {
		if err := a.deps.Close(); err != nil {
			obslog.L().Warn("close dependencies", zap.Error(err))
		}
	}
}

func singleArg(c *cli.Command, what string) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument", what)
	}
	return strings.TrimSpace(c.Args().First()), nil
}

// joinedArgs accepts an unquoted FEN or PGN split across several arguments.
func joinedArgs(c *cli.Command, what string) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("missing <%s> argument", what)
	}
	return text, nil
}

func nameOr(name, def string) string {
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	return def
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
