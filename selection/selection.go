// Package selection keeps the decoded blocks of the chunks currently on screen. Moving the
// selection only decodes chunks that entered it and drops chunks that left it.
package selection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
	"github.com/Pessimistress/minecraft-chunk-viewer/chunk"
	"github.com/Pessimistress/minecraft-chunk-viewer/occupancy"
)

// Bounds is an inclusive axis-aligned box in world coordinates.
type Bounds struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Selection is an immutable snapshot of the selected chunks and their records.
type Selection struct {
	// Chunks are region-local chunk positions in request order.
	Chunks []anvil.ChunkPos
	// Data holds records in ascending Y. Aliases directly follow their primary.
	Data       []chunk.Record
	BlockCount int
	// Bounds covers primary records; nil when BlockCount is 0.
	Bounds *Bounds

	byIndex []int
}

// Record returns the primary record with the given render index.
func (s *Selection) Record(renderIndex int) (*chunk.Record, bool) {
	if renderIndex < 0 || renderIndex >= len(s.byIndex) {
		return nil, false
	}
	return &s.Data[s.byIndex[renderIndex]], true
}

// SliceY maps t in [0, 1] onto the Y range of the selection, as the viewer's slicing
// control does.
func (s *Selection) SliceY(t float64) int {
	if s.Bounds == nil {
		return 0
	}
	v := t*float64(s.Bounds.MaxY) + (1-t)*float64(s.Bounds.MinY)
	y := int(v)
	if float64(y) > v {
		y--
	}
	return y
}

type Option func(*Cache)

// WithWorkers bounds the number of chunks decoded concurrently.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// Cache owns the per-Y record buckets, the occupancy index and the current selection of
// one region. All mutation happens under mu.
type Cache struct {
	region  anvil.Region
	tables  *blocks.Tables
	workers int
	log     *slog.Logger

	mu        sync.Mutex
	buckets   [chunk.Height][]chunk.Record
	occupancy *occupancy.Index
	// origins maps selected region-local chunks to their world origin; chunks the region
	// does not contain have no entry.
	origins map[anvil.ChunkPos]anvil.ChunkPos
	current *Selection
}

func New(region anvil.Region, tables *blocks.Tables, opts ...Option) *Cache {
	c := &Cache{
		region:    region,
		tables:    tables,
		workers:   runtime.NumCPU(),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		occupancy: occupancy.NewIndex(),
		origins:   make(map[anvil.ChunkPos]anvil.ChunkPos),
		current:   &Selection{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Selection returns the current selection.
func (c *Cache) Selection() *Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// IsOpaque reports whether the block at world coordinates is opaque in the loaded chunks.
func (c *Cache) IsOpaque(x, y, z int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupancy.IsOpaque(x, y, z)
}

// Reselect moves the selection to chunks. If the set of chunks is unchanged the current
// selection is returned as is. The only error is ctx's, in which case the cache is left
// untouched.
func (c *Cache) Reselect(ctx context.Context, chunks []anvil.ChunkPos) (*Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	requested := dedupe(chunks)
	wanted := make(map[anvil.ChunkPos]bool, len(requested))
	for _, pos := range requested {
		wanted[pos] = true
	}
	selected := make(map[anvil.ChunkPos]bool, len(c.current.Chunks))
	for _, pos := range c.current.Chunks {
		selected[pos] = true
	}

	// Jumping to a disjoint area: dropping everything beats filtering chunk by chunk.
	reset := len(c.current.Chunks) > 0
	for _, pos := range c.current.Chunks {
		if wanted[pos] {
			reset = false
			break
		}
	}

	var removed []anvil.ChunkPos
	if !reset {
		for _, pos := range c.current.Chunks {
			if !wanted[pos] {
				removed = append(removed, pos)
			}
		}
	}
	var added []anvil.ChunkPos
	for _, pos := range requested {
		if !selected[pos] {
			added = append(added, pos)
		}
	}

	if !reset && len(removed) == 0 && len(added) == 0 {
		return c.current, nil
	}

	decoded, err := c.decodeAll(ctx, added)
	if err != nil {
		return nil, err
	}

	if reset {
		c.resetLocked()
	}
	for _, pos := range removed {
		c.removeLocked(pos)
	}
	for i, pos := range added {
		c.addLocked(pos, decoded[i])
	}

	c.current = c.flattenLocked(requested)
	c.log.Debug("reselected chunks",
		"reset", reset,
		"added", len(added),
		"removed", len(removed),
		"chunks", len(requested),
		"blockCount", c.current.BlockCount)
	return c.current, nil
}

func dedupe(chunks []anvil.ChunkPos) []anvil.ChunkPos {
	seen := make(map[anvil.ChunkPos]bool, len(chunks))
	out := make([]anvil.ChunkPos, 0, len(chunks))
	for _, pos := range chunks {
		if !seen[pos] {
			seen[pos] = true
			out = append(out, pos)
		}
	}
	return out
}

// decodeAll decodes chunks on a bounded worker pool. Result i belongs to chunks[i] and is
// nil when the region has no usable chunk there.
func (c *Cache) decodeAll(ctx context.Context, chunks []anvil.ChunkPos) ([]*chunk.Result, error) {
	results := make([]*chunk.Result, len(chunks))
	if len(chunks) == 0 {
		return results, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, pos := range chunks {
		i, pos := i, pos
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := c.region.Chunk(pos.X, pos.Z)
			if err != nil {
				if !errors.Is(err, anvil.ErrNoChunk) {
					c.log.Warn("skipping unreadable chunk", "x", pos.X, "z", pos.Z, "error", err)
				}
				return nil
			}
			results[i] = chunk.Decode(data, c.tables)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Cache) resetLocked() {
	for y := range c.buckets {
		c.buckets[y] = nil
	}
	c.occupancy.Reset()
	c.origins = make(map[anvil.ChunkPos]anvil.ChunkPos)
}

func (c *Cache) removeLocked(pos anvil.ChunkPos) {
	origin, ok := c.origins[pos]
	if !ok {
		return
	}
	delete(c.origins, pos)

	minX, minZ := origin.X*16, origin.Z*16
	for y := range c.buckets {
		kept := c.buckets[y][:0]
		for _, r := range c.buckets[y] {
			if r.Pos.X < minX || r.Pos.X >= minX+16 || r.Pos.Z < minZ || r.Pos.Z >= minZ+16 {
				kept = append(kept, r)
			}
		}
		// Clear the tail so dropped records do not pin their definitions.
		for i := len(kept); i < len(c.buckets[y]); i++ {
			c.buckets[y][i] = chunk.Record{}
		}
		c.buckets[y] = kept
	}
	c.occupancy.Remove(origin)
}

func (c *Cache) addLocked(pos anvil.ChunkPos, res *chunk.Result) {
	if res == nil {
		return
	}
	c.origins[pos] = res.Origin
	for y := range res.Buckets {
		c.buckets[y] = append(c.buckets[y], res.Buckets[y]...)
	}
	c.occupancy.Put(res.Origin, res.Occupancy)
}

// flattenLocked builds a new selection from the buckets. Primary records are numbered in
// flatten order first; aliases then copy the index of their parent.
func (c *Cache) flattenLocked(chunks []anvil.ChunkPos) *Selection {
	total := 0
	for y := range c.buckets {
		total += len(c.buckets[y])
	}
	sel := &Selection{
		Chunks: chunks,
		Data:   make([]chunk.Record, 0, total),
	}

	var bounds Bounds
	parent := -1
	for y := range c.buckets {
		for _, r := range c.buckets[y] {
			pos := len(sel.Data)
			if r.Alias {
				r.Parent = parent
				sel.Data = append(sel.Data, r)
				continue
			}
			r.Parent = -1
			r.RenderIndex = sel.BlockCount
			sel.Data = append(sel.Data, r)
			sel.byIndex = append(sel.byIndex, pos)
			parent = pos

			if sel.BlockCount == 0 {
				bounds = Bounds{r.Pos.X, r.Pos.Y, r.Pos.Z, r.Pos.X, r.Pos.Y, r.Pos.Z}
			} else {
				bounds.MinX = min(bounds.MinX, r.Pos.X)
				bounds.MinY = min(bounds.MinY, r.Pos.Y)
				bounds.MinZ = min(bounds.MinZ, r.Pos.Z)
				bounds.MaxX = max(bounds.MaxX, r.Pos.X)
				bounds.MaxY = max(bounds.MaxY, r.Pos.Y)
				bounds.MaxZ = max(bounds.MaxZ, r.Pos.Z)
			}
			sel.BlockCount++
		}
	}

	for i := range sel.Data {
		if r := &sel.Data[i]; r.Alias {
			r.RenderIndex = sel.Data[r.Parent].RenderIndex
		}
	}

	if sel.BlockCount > 0 {
		sel.Bounds = &bounds
	}
	return sel
}
