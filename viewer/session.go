// Package viewer is the entry point renderers and UIs talk to: load a region, move the
// chunk selection, and query blocks of the current selection.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
	"github.com/Pessimistress/minecraft-chunk-viewer/chunk"
	"github.com/Pessimistress/minecraft-chunk-viewer/heightmap"
	"github.com/Pessimistress/minecraft-chunk-viewer/selection"
)

var ErrNoRegion = errors.New("viewer: no region loaded")

// RegionInfo describes a freshly loaded region.
type RegionInfo struct {
	Available []anvil.ChunkPos
	HeightMap *heightmap.HeightMap
}

type Option func(*Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithWorkers sets how many chunks are decoded concurrently.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Session holds one loaded region and the selection cache over it. Independent sessions
// share nothing but the read-only tables.
type Session struct {
	tables  *blocks.Tables
	log     *slog.Logger
	workers int

	mu     sync.Mutex
	region anvil.Region
	info   *RegionInfo
	cache  *selection.Cache
}

func NewSession(tables *blocks.Tables, opts ...Option) *Session {
	s := &Session{
		tables:  tables,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadRegion parses a region file held in memory, scans its height map and starts an
// empty selection. On failure the session is left without a region.
func (s *Session) LoadRegion(ctx context.Context, raw []byte) (*RegionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.region, s.info, s.cache = nil, nil, nil

	reader, err := anvil.Open(raw)
	if err != nil {
		return nil, fmt.Errorf("load region: %w", err)
	}
	return s.useRegionLocked(ctx, reader)
}

// UseRegion starts the session on an already opened region.
func (s *Session) UseRegion(ctx context.Context, region anvil.Region) (*RegionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.region, s.info, s.cache = nil, nil, nil
	return s.useRegionLocked(ctx, region)
}

func (s *Session) useRegionLocked(ctx context.Context, region anvil.Region) (*RegionInfo, error) {
	start := time.Now()
	hm, err := heightmap.Build(ctx, region, s.workers)
	if err != nil {
		return nil, fmt.Errorf("load region: %w", err)
	}
	for _, pos := range hm.Unreadable {
		s.log.Warn("chunk listed but unreadable", "x", pos.X, "z", pos.Z)
	}

	s.region = region
	s.info = &RegionInfo{Available: hm.Available, HeightMap: hm}
	s.cache = s.newCache()
	s.log.Info("region loaded",
		"chunks", len(hm.Available),
		"unreadable", len(hm.Unreadable),
		"took", time.Since(start))
	return s.info, nil
}

func (s *Session) newCache() *selection.Cache {
	return selection.New(s.region, s.tables,
		selection.WithWorkers(s.workers),
		selection.WithLogger(s.log))
}

// Fork returns a session over the same region with its own, empty selection.
func (s *Session) Fork() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &Session{
		tables:  s.tables,
		log:     s.log,
		workers: s.workers,
		region:  s.region,
		info:    s.info,
	}
	if f.region != nil {
		f.cache = f.newCache()
	}
	return f
}

// Region returns what LoadRegion reported, or nil before a region is loaded.
func (s *Session) Region() *RegionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Session) selectionCache() *selection.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache
}

// Reselect moves the selection to chunks (region-local). Without a region it returns an
// empty selection.
func (s *Session) Reselect(ctx context.Context, chunks []anvil.ChunkPos) (*selection.Selection, error) {
	cache := s.selectionCache()
	if cache == nil {
		return &selection.Selection{}, nil
	}
	start := time.Now()
	sel, err := cache.Reselect(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.log.Debug("selection updated",
		"chunks", len(sel.Chunks),
		"blockCount", sel.BlockCount,
		"took", time.Since(start))
	return sel, nil
}

// Selection returns the current selection, or ErrNoRegion.
func (s *Session) Selection() (*selection.Selection, error) {
	cache := s.selectionCache()
	if cache == nil {
		return nil, ErrNoRegion
	}
	return cache.Selection(), nil
}

// IsOpaque reports whether the block at world coordinates is opaque. Blocks outside the
// selection never are.
func (s *Session) IsOpaque(x, y, z int) bool {
	cache := s.selectionCache()
	if cache == nil {
		return false
	}
	return cache.IsOpaque(x, y, z)
}

func TemperatureOf(r *chunk.Record) float64 {
	return r.Temperature()
}

func HumidityOf(r *chunk.Record) float64 {
	return r.Humidity()
}
