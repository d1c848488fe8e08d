package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/instance"
	"github.com/Pessimistress/minecraft-chunk-viewer/selection"
	"github.com/Pessimistress/minecraft-chunk-viewer/server"
	"github.com/Pessimistress/minecraft-chunk-viewer/viewer"
)

const listedChunks = 10

func runInfo(c *cli.Context, e *env) error {
	_, info, err := e.load(context.Background(), c)
	if err != nil {
		return err
	}
	fmt.Printf("%d chunks in %s\n", len(info.Available), c.Args().Get(0))
	for i, pos := range info.Available {
		if i == listedChunks {
			fmt.Printf("  ... and %d more\n", len(info.Available)-listedChunks)
			break
		}
		fmt.Printf("  %d,%d\n", pos.X, pos.Z)
	}
	if n := len(info.HeightMap.Unreadable); n > 0 {
		fmt.Printf("%d chunks could not be read\n", n)
	}
	return nil
}

func runHeightMap(c *cli.Context, e *env) (err error) {
	if c.NArg() < 2 {
		return fmt.Errorf("need a region file and an output file")
	}
	_, info, err := e.load(context.Background(), c)
	if err != nil {
		return
	}
	out, err := os.Create(c.Args().Get(1))
	if err != nil {
		return
	}
	if err = info.HeightMap.WritePNG(out); err != nil {
		out.Close()
		return
	}
	return out.Close()
}

// parseChunks reads "x,z" arguments. With none, the first available chunk is used.
func parseChunks(args []string, info *viewer.RegionInfo) ([]anvil.ChunkPos, error) {
	if len(args) == 0 {
		if len(info.Available) == 0 {
			return nil, fmt.Errorf("region has no chunks")
		}
		return info.Available[:1], nil
	}
	chunks := make([]anvil.ChunkPos, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad chunk %q, want x,z", arg)
		}
		x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
		z, errZ := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errX != nil || errZ != nil {
			return nil, fmt.Errorf("bad chunk %q, want x,z", arg)
		}
		if x < 0 || x >= anvil.RegionChunks || z < 0 || z >= anvil.RegionChunks {
			return nil, fmt.Errorf("chunk %q is outside the region", arg)
		}
		chunks = append(chunks, anvil.ChunkPos{X: x, Z: z})
	}
	return chunks, nil
}

func selectArgs(c *cli.Context, e *env, skip int) (*viewer.Session, *selection.Selection, error) {
	s, info, err := e.load(context.Background(), c)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := parseChunks(c.Args().Slice()[skip:], info)
	if err != nil {
		return nil, nil, err
	}
	sel, err := s.Reselect(context.Background(), chunks)
	if err != nil {
		return nil, nil, err
	}
	return s, sel, nil
}

func runSelect(c *cli.Context, e *env) error {
	s, sel, err := selectArgs(c, e, 1)
	if err != nil {
		return err
	}
	fmt.Println(s.Summary())
	if sel.Bounds != nil {
		b := sel.Bounds
		fmt.Printf("bounds %d,%d,%d to %d,%d,%d\n", b.MinX, b.MinY, b.MinZ, b.MaxX, b.MaxY, b.MaxZ)
	}

	counts := make(map[string]int)
	for i := range sel.Data {
		if r := &sel.Data[i]; !r.Alias {
			counts[fmt.Sprintf("%s (%d:%d)", r.Block.Name, r.Block.ID, r.Block.Data)]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Printf("%8d %s\n", counts[name], name)
	}
	return nil
}

func runExport(c *cli.Context, e *env) (err error) {
	if c.NArg() < 2 {
		return fmt.Errorf("need a region file and an output file")
	}
	s, sel, err := selectArgs(c, e, 2)
	if err != nil {
		return
	}
	out, err := os.Create(c.Args().Get(1))
	if err != nil {
		return
	}
	if err = instance.Write(out, sel, s.IsOpaque); err != nil {
		out.Close()
		return
	}
	if err = out.Close(); err != nil {
		return
	}
	e.log.Info("exported selection", "records", len(sel.Data), "blockCount", sel.BlockCount)
	return nil
}

func runServe(c *cli.Context, e *env) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, _, err := e.load(ctx, c)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:    e.cfg.Listen,
		Handler: server.New(s, e.log).Mux(),
	}

	errs := make(chan error, 1)
	go func() {
		e.log.Info("listening", "addr", e.cfg.Listen)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
