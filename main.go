package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
	"github.com/Pessimistress/minecraft-chunk-viewer/config"
	"github.com/Pessimistress/minecraft-chunk-viewer/viewer"
)

// env is what every command needs, built once from flags and the config file.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	tables *blocks.Tables
}

func main() {
	var e env
	app := &cli.App{
		Name:  "mcaview",
		Usage: "inspects Anvil region files and serves chunk selections to a renderer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file"},
			&cli.IntFlag{Name: "workers", Usage: "chunks decoded concurrently"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "listen", Usage: "address the serve command listens on"},
			&cli.StringFlag{Name: "blocks", Usage: "block table JSON replacing the built-in one"},
			&cli.StringFlag{Name: "biomes", Usage: "biome table JSON replacing the built-in one"},
			&cli.IntFlag{Name: "default-biome", Usage: "biome id for chunks without biome data"},
		},
		Before: func(c *cli.Context) (err error) {
			e, err = newEnv(c)
			return
		},
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "lists the chunks of a region",
				ArgsUsage: "<file.mca>",
				Action:    func(c *cli.Context) error { return runInfo(c, &e) },
			},
			{
				Name:      "heightmap",
				Usage:     "writes the region height map as a PNG",
				ArgsUsage: "<file.mca> <out.png>",
				Action:    func(c *cli.Context) error { return runHeightMap(c, &e) },
			},
			{
				Name:      "select",
				Usage:     "decodes chunks and prints what they contain",
				ArgsUsage: "<file.mca> [x,z ...]",
				Action:    func(c *cli.Context) error { return runSelect(c, &e) },
			},
			{
				Name:      "export",
				Usage:     "writes the instance buffer of a selection",
				ArgsUsage: "<file.mca> <out.bin> [x,z ...]",
				Action:    func(c *cli.Context) error { return runExport(c, &e) },
			},
			{
				Name:      "serve",
				Usage:     "serves selections of a region over a websocket",
				ArgsUsage: "<file.mca>",
				Action:    func(c *cli.Context) error { return runServe(c, &e) },
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func newEnv(c *cli.Context) (e env, err error) {
	cfg := config.DefaultConfig()
	explicit := make(map[string]bool)
	for _, name := range []string{"workers", "log-level", "listen", "blocks", "biomes", "default-biome"} {
		explicit[name] = c.IsSet(name)
	}
	if explicit["workers"] {
		cfg.Workers = c.Int("workers")
	}
	if explicit["log-level"] {
		cfg.LogLevel = c.String("log-level")
	}
	if explicit["listen"] {
		cfg.Listen = c.String("listen")
	}
	if explicit["blocks"] {
		cfg.BlocksFile = c.String("blocks")
	}
	if explicit["biomes"] {
		cfg.BiomesFile = c.String("biomes")
	}
	if explicit["default-biome"] {
		cfg.DefaultBiome = c.Int("default-biome")
	}

	if path := c.String("config"); path != "" {
		fromFile, err := config.Load(path)
		if err != nil {
			return e, err
		}
		config.Merge(cfg, fromFile, explicit)
	}
	if err = cfg.Validate(); err != nil {
		return e, err
	}

	var level slog.Level
	if err = level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return e, err
	}
	e.cfg = cfg
	e.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	e.tables, err = cfg.Tables()
	return
}

func (e *env) session() *viewer.Session {
	return viewer.NewSession(e.tables, viewer.WithLogger(e.log), viewer.WithWorkers(e.cfg.Workers))
}

// load opens the region named by the first argument in a new session.
func (e *env) load(ctx context.Context, c *cli.Context) (*viewer.Session, *viewer.RegionInfo, error) {
	if c.NArg() == 0 {
		return nil, nil, fmt.Errorf("need a region file to work with")
	}
	path := c.Args().Get(0)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	s := e.session()
	info, err := s.LoadRegion(ctx, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, info, nil
}
