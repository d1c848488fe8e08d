package anvil

const (
	// RegionChunks is the number of chunks along each axis of a region.
	RegionChunks = 32
	// SectionCells is the number of blocks in one 16x16x16 section.
	SectionCells = 16 * 16 * 16
	// ColumnCells is the number of (x, z) columns in a chunk.
	ColumnCells = 16 * 16
)

// ChunkPos addresses a chunk, either inside a region (0..31) or in world chunk units.
type ChunkPos struct {
	X int
	Z int
}

// Chunk is the Level compound of a pre-1.13 Anvil chunk.
type Chunk struct {
	XPos      int32     `nbt:"xPos"`
	ZPos      int32     `nbt:"zPos"`
	HeightMap []int32   `nbt:"HeightMap"`
	Biomes    []byte    `nbt:"Biomes"`
	Sections  []Section `nbt:"Sections"`
}

// Origin returns the chunk's world position in chunk units.
func (c *Chunk) Origin() ChunkPos {
	return ChunkPos{X: int(c.XPos), Z: int(c.ZPos)}
}

// Section is a 16x16x16 slab of a chunk. Cell index is (y<<8)+(z<<4)+x.
type Section struct {
	Y          int8   `nbt:"Y"`
	Blocks     []byte `nbt:"Blocks"`
	Add        []byte `nbt:"Add"`
	Data       []byte `nbt:"Data"`
	BlockLight []byte `nbt:"BlockLight"`
	SkyLight   []byte `nbt:"SkyLight"`
}

type chunkRoot struct {
	Level Chunk `nbt:"Level"`
}

// CellIndex returns the section cell index of local coordinates.
func CellIndex(x, y, z int) int {
	return (y << 8) + (z << 4) + x
}
