// Package heightmap flattens the column heights of a whole region into the raster the
// minimap draws.
package heightmap

import (
	"context"
	"errors"
	"image"
	"image/png"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
)

// Size is the width and depth of a region in blocks.
const Size = anvil.RegionChunks * 16

// HeightMap is a Size x Size raster of column heights, indexed z*Size+x in region-local
// block coordinates, plus the chunks the region holds.
type HeightMap struct {
	Raster []byte
	// Available lists readable chunks, chunk x outer and chunk z inner.
	Available []anvil.ChunkPos
	// Unreadable lists chunks that are present but failed to decode.
	Unreadable []anvil.ChunkPos
}

// At returns the height of the column at region-local block x, z.
func (h *HeightMap) At(x, z int) int {
	return int(h.Raster[z*Size+x])
}

// Build scans every chunk of region once. Decoding runs on up to workers goroutines; the
// result does not depend on scheduling. The only error is ctx's.
func Build(ctx context.Context, region anvil.Region, workers int) (*HeightMap, error) {
	type slot struct {
		chunk *anvil.Chunk
		err   error
	}
	slots := make([]slot, anvil.RegionChunks*anvil.RegionChunks)

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for cx := 0; cx < anvil.RegionChunks; cx++ {
		for cz := 0; cz < anvil.RegionChunks; cz++ {
			cx, cz := cx, cz
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				c, err := region.Chunk(cx, cz)
				slots[cx*anvil.RegionChunks+cz] = slot{chunk: c, err: err}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h := &HeightMap{Raster: make([]byte, Size*Size)}
	for i, s := range slots {
		pos := anvil.ChunkPos{X: i / anvil.RegionChunks, Z: i % anvil.RegionChunks}
		switch {
		case errors.Is(s.err, anvil.ErrNoChunk):
			continue
		case s.err != nil:
			h.Unreadable = append(h.Unreadable, pos)
			continue
		}
		h.Available = append(h.Available, pos)
		h.copyColumns(pos, s.chunk.HeightMap)
	}
	return h, nil
}

func (h *HeightMap) copyColumns(pos anvil.ChunkPos, heights []int32) {
	offsetX, offsetZ := pos.X<<4, pos.Z<<4
	for i, v := range heights {
		if i >= anvil.ColumnCells {
			break
		}
		x := (i & 0xf) + offsetX
		z := (i >> 4) + offsetZ
		h.Raster[z*Size+x] = clamp(v)
	}
}

func clamp(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 0xff {
		return 0xff
	}
	return byte(v)
}

// Image returns the raster as a grayscale image, brighter meaning higher.
func (h *HeightMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, Size, Size))
	copy(img.Pix, h.Raster)
	return img
}

func (h *HeightMap) WritePNG(w io.Writer) error {
	return png.Encode(w, h.Image())
}
