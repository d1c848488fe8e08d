// Package occupancy tracks which blocks of the loaded chunks are opaque, so renderers can
// cull faces hidden behind a neighbour.
package occupancy

import (
	"github.com/willf/bitset"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
)

const (
	// Height is the number of block layers a chunk spans.
	Height = 256
	// Rows is the number of 16-bit rows in a Mask, one per (y, z) pair.
	Rows = Height * 16
)

// Mask is the opacity of one chunk: row (y<<4)+z holds one bit per x.
type Mask struct {
	bits *bitset.BitSet
}

func NewMask() *Mask {
	return &Mask{bits: bitset.New(Rows * 16)}
}

// Row returns the row index for a chunk-local z and absolute y.
func Row(y, z int) int {
	return (y << 4) + z
}

func bit(x, y, z int) uint {
	return uint(Row(y, z))<<4 | uint(x)
}

func inMask(x, y, z int) bool {
	return x >= 0 && x < 16 && z >= 0 && z < 16 && y >= 0 && y < Height
}

// Set records the opacity of the block at chunk-local x, z and absolute y.
func (m *Mask) Set(x, y, z int, opaque bool) {
	if !inMask(x, y, z) {
		return
	}
	if opaque {
		m.bits.Set(bit(x, y, z))
	} else {
		m.bits.Clear(bit(x, y, z))
	}
}

func (m *Mask) Opaque(x, y, z int) bool {
	return inMask(x, y, z) && m.bits.Test(bit(x, y, z))
}

// RowBits returns the 16 x-bits of a row, bit x set when that block is opaque.
func (m *Mask) RowBits(y, z int) uint16 {
	var row uint16
	for x := 0; x < 16; x++ {
		if m.Opaque(x, y, z) {
			row |= 1 << uint(x)
		}
	}
	return row
}

// Count returns the number of opaque blocks.
func (m *Mask) Count() int {
	return int(m.bits.Count())
}

// Index maps world chunk positions to their masks. A chunk without a mask is not loaded
// and never occludes anything. Index is not safe for concurrent use.
type Index struct {
	masks map[anvil.ChunkPos]*Mask
}

func NewIndex() *Index {
	return &Index{masks: make(map[anvil.ChunkPos]*Mask)}
}

func (idx *Index) Put(pos anvil.ChunkPos, m *Mask) {
	idx.masks[pos] = m
}

// Remove forgets a chunk; it becomes absent rather than empty.
func (idx *Index) Remove(pos anvil.ChunkPos) {
	delete(idx.masks, pos)
}

func (idx *Index) Has(pos anvil.ChunkPos) bool {
	_, ok := idx.masks[pos]
	return ok
}

func (idx *Index) Len() int {
	return len(idx.masks)
}

func (idx *Index) Reset() {
	idx.masks = make(map[anvil.ChunkPos]*Mask)
}

// IsOpaque reports whether the block at world coordinates is opaque. y is absolute; blocks
// in unloaded chunks or outside the world height are not opaque.
func (idx *Index) IsOpaque(x, y, z int) bool {
	cx, cz := x>>4, z>>4
	m, ok := idx.masks[anvil.ChunkPos{X: cx, Z: cz}]
	if !ok {
		return false
	}
	return m.Opaque(x-cx*16, y, z-cz*16)
}
