package viewer

import (
	"fmt"

	"github.com/Pessimistress/minecraft-chunk-viewer/chunk"
)

// Summary is the status line of a session.
type Summary struct {
	// ChunksLoaded counts readable chunks in the region.
	ChunksLoaded   int
	ChunksSelected int
	BlocksRendered int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d chunks loaded, %d selected, %d blocks rendered",
		s.ChunksLoaded, s.ChunksSelected, s.BlocksRendered)
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	info, cache := s.info, s.cache
	s.mu.Unlock()

	var sum Summary
	if info != nil {
		sum.ChunksLoaded = len(info.Available)
	}
	if cache != nil {
		sel := cache.Selection()
		sum.ChunksSelected = len(sel.Chunks)
		sum.BlocksRendered = sel.BlockCount
	}
	return sum
}

// Describe renders the hover text for a block: its name, id:data, world position and biome.
func Describe(r *chunk.Record) string {
	name := "Unknown"
	if r.Block != nil && r.Block.Name != "" {
		name = r.Block.Name
	}
	biome := "Unknown"
	if r.Biome != nil && r.Biome.Name != "" {
		biome = r.Biome.Name
	}
	return fmt.Sprintf("%s (%d:%d) at %d, %d, %d in %s",
		name, r.BlockID, r.BlockData, r.Pos.X, r.Pos.Y, r.Pos.Z, biome)
}
