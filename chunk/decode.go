// Package chunk turns the block sections of one Anvil chunk into render-ready block
// records and the chunk's opacity mask.
package chunk

import (
	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
	"github.com/Pessimistress/minecraft-chunk-viewer/nibble"
	"github.com/Pessimistress/minecraft-chunk-viewer/occupancy"
)

// Height is the number of Y layers records are bucketed into.
const Height = occupancy.Height

// stairsAliasData is added to the data value of the second record emitted for a stairs
// block; the renderer draws the inverted half from it.
const stairsAliasData = 8

const nibbleBytes = anvil.SectionCells / 2

// Pos is a block position in world coordinates.
type Pos struct {
	X, Y, Z int
}

// Record is one visible block.
type Record struct {
	Pos       Pos
	BlockID   int
	BlockData int
	Block     *blocks.BlockDef
	Biome     *blocks.BiomeDef
	Lighting  int

	// RenderIndex and Parent are assigned when a selection is flattened.
	RenderIndex int
	// Alias marks a secondary record; its primary is the record right before it in the
	// same Y bucket.
	Alias bool
	// Parent is the position of the primary record in the flattened selection, or -1.
	Parent int
}

// Temperature is the biome temperature cooled by altitude above y=64.
func (r *Record) Temperature() float64 {
	drop := 0.00166667 * float64(r.Pos.Y-64)
	if drop < 0 {
		drop = 0
	}
	return r.Biome.Temperature - drop
}

func (r *Record) Humidity() float64 {
	return r.Biome.Humidity
}

// Result is the decoded content of one chunk.
type Result struct {
	// Origin is the chunk's world position in chunk units.
	Origin    anvil.ChunkPos
	Buckets   [Height][]Record
	Occupancy *occupancy.Mask
	// Count is the number of primary records.
	Count int
}

// Decode converts every non-air, known block of c into records bucketed by world Y and
// builds its opacity mask. Unknown blocks are skipped; missing biome data falls back to
// tables.MissingBiome.
func Decode(c *anvil.Chunk, tables *blocks.Tables) *Result {
	res := &Result{
		Origin:    c.Origin(),
		Occupancy: occupancy.NewMask(),
	}
	xOffset := int(c.XPos) * 16
	zOffset := int(c.ZPos) * 16

	var columnBiomes [anvil.ColumnCells]*blocks.BiomeDef
	hasBiomes := len(c.Biomes) == anvil.ColumnCells
	for i := range columnBiomes {
		id := tables.MissingBiome()
		if hasBiomes {
			id = int(c.Biomes[i])
		}
		columnBiomes[i] = tables.Biome(id)
	}

	for si := range c.Sections {
		section := &c.Sections[si]
		if len(section.Blocks) != anvil.SectionCells {
			continue
		}
		yOffset := int(section.Y) * 16
		add := nibbleArray(section.Add)
		data := nibbleArray(section.Data)
		blockLight := nibbleArray(section.BlockLight)
		skyLight := nibbleArray(section.SkyLight)

		for i := 0; i < anvil.SectionCells; i++ {
			blockID := int(section.Blocks[i])
			if add != nil {
				blockID |= nibble.Read(add, i) << 8
			}
			if blockID == 0 {
				continue
			}

			blockData := readOptional(data, i)
			def, ok := tables.Block(blockID, blockData)
			if !ok {
				continue
			}

			x := i & 0xf
			y := (i >> 8) + yOffset
			z := (i >> 4) & 0xf
			if y < 0 || y >= Height {
				continue
			}

			lighting := readOptional(blockLight, i) + readOptional(skyLight, i)
			if lighting > 0xf {
				lighting = 0xf
			}

			res.Occupancy.Set(x, y, z, def.Opaque)

			rec := Record{
				Pos:       Pos{X: x + xOffset, Y: y, Z: z + zOffset},
				BlockID:   blockID,
				BlockData: blockData,
				Block:     def,
				Biome:     columnBiomes[i%anvil.ColumnCells],
				Lighting:  lighting,
				Parent:    -1,
			}
			res.Buckets[y] = append(res.Buckets[y], rec)
			res.Count++

			if def.Model == blocks.ModelStairs {
				alias := rec
				alias.BlockData += stairsAliasData
				alias.Alias = true
				res.Buckets[y] = append(res.Buckets[y], alias)
			}
		}
	}
	return res
}

// nibbleArray returns buf when it holds a full section, nil otherwise.
func nibbleArray(buf []byte) []byte {
	if len(buf) != nibbleBytes {
		return nil
	}
	return buf
}

func readOptional(buf []byte, i int) int {
	if buf == nil {
		return 0
	}
	return nibble.Read(buf, i)
}
