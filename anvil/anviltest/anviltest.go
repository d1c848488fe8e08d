// Package anviltest builds chunks and regions for tests.
package anviltest

import (
	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/nibble"
)

// ChunkBuilder fills a legacy chunk block by block. Sections are created on demand.
type ChunkBuilder struct {
	chunk anvil.Chunk
}

// NewChunk starts a chunk at world chunk position xPos, zPos with biome data omitted.
func NewChunk(xPos, zPos int) *ChunkBuilder {
	return &ChunkBuilder{chunk: anvil.Chunk{
		XPos:      int32(xPos),
		ZPos:      int32(zPos),
		HeightMap: make([]int32, anvil.ColumnCells),
	}}
}

func (b *ChunkBuilder) section(y int) *anvil.Section {
	sy := int8(y >> 4)
	for i := range b.chunk.Sections {
		if b.chunk.Sections[i].Y == sy {
			return &b.chunk.Sections[i]
		}
	}
	b.chunk.Sections = append(b.chunk.Sections, anvil.Section{
		Y:          sy,
		Blocks:     make([]byte, anvil.SectionCells),
		Data:       make([]byte, anvil.SectionCells/2),
		BlockLight: make([]byte, anvil.SectionCells/2),
		SkyLight:   make([]byte, anvil.SectionCells/2),
	})
	return &b.chunk.Sections[len(b.chunk.Sections)-1]
}

// Set places block id:data at chunk-local x, z and absolute y. Ids above 255 get an Add
// array. The column height is raised to cover the block.
func (b *ChunkBuilder) Set(x, y, z, id, data int) *ChunkBuilder {
	s := b.section(y)
	i := anvil.CellIndex(x, y&0xf, z)
	s.Blocks[i] = byte(id)
	if id > 0xff {
		if s.Add == nil {
			s.Add = make([]byte, anvil.SectionCells/2)
		}
		nibble.Set(s.Add, i, id>>8)
	}
	nibble.Set(s.Data, i, data)

	col := z*16 + x
	if int32(y+1) > b.chunk.HeightMap[col] {
		b.chunk.HeightMap[col] = int32(y + 1)
	}
	return b
}

// Light sets the block and sky light of the cell at chunk-local x, z and absolute y.
func (b *ChunkBuilder) Light(x, y, z, block, sky int) *ChunkBuilder {
	s := b.section(y)
	i := anvil.CellIndex(x, y&0xf, z)
	nibble.Set(s.BlockLight, i, block)
	nibble.Set(s.SkyLight, i, sky)
	return b
}

// Biomes fills the biome array with id.
func (b *ChunkBuilder) Biomes(id byte) *ChunkBuilder {
	b.chunk.Biomes = make([]byte, anvil.ColumnCells)
	for i := range b.chunk.Biomes {
		b.chunk.Biomes[i] = id
	}
	return b
}

// Biome sets the biome of one column.
func (b *ChunkBuilder) Biome(x, z int, id byte) *ChunkBuilder {
	if b.chunk.Biomes == nil {
		b.Biomes(0)
	}
	b.chunk.Biomes[z*16+x] = id
	return b
}

func (b *ChunkBuilder) Build() *anvil.Chunk {
	c := b.chunk
	return &c
}

// Region is an in-memory anvil.Region.
type Region map[anvil.ChunkPos]*anvil.Chunk

func (r Region) Chunk(x, z int) (*anvil.Chunk, error) {
	c, ok := r[anvil.ChunkPos{X: x, Z: z}]
	if !ok {
		return nil, anvil.ErrNoChunk
	}
	return c, nil
}

// Bytes encodes the region as an .mca file.
func (r Region) Bytes() ([]byte, error) {
	w := anvil.NewWriter()
	for pos, c := range r {
		if err := w.Put(pos.X, pos.Z, c); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}
