// Package anvil reads and writes Anvil region files (.mca): a 32x32 grid of compressed
// NBT chunks addressed through a 4 KiB sector table.
package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/willf/bitset"

	"github.com/Pessimistress/minecraft-chunk-viewer/nbt"
)

const anvilMaxOffsets = RegionChunks * RegionChunks
const anvilSectorSize = 4096

var ErrNoChunk = errors.New("anvil: chunk not found")
var ErrInvalidChunkLength = errors.New("anvil: invalid chunk length")
var ErrInvalidCompression = errors.New("anvil: invalid compression format")
var ErrShortHeader = errors.New("anvil: region shorter than its sector table")

type CompressionLevel byte

const (
	CompressionGzip    CompressionLevel = 1
	CompressionDeflate CompressionLevel = 2
)

// Region is anything that can hand out decoded chunks by region-local coordinates.
// Absent chunks are reported with ErrNoChunk.
type Region interface {
	Chunk(x, z int) (*Chunk, error)
}

// Reader extracts chunks from an Anvil region. Sector reads are serialized internally;
// decompression and NBT decoding run unlocked, so Chunk may be called from several
// goroutines.
type Reader struct {
	mu          sync.Mutex
	source      io.ReadSeeker
	sectorTable []int32
	present     *bitset.BitSet
	Name        string
}

// NewReader creates a Reader. The ownership of the source is transferred to this reader.
func NewReader(source io.ReadSeeker) (reader *Reader, err error) {
	reader = &Reader{
		source:      source,
		sectorTable: make([]int32, anvilMaxOffsets),
		present:     bitset.New(anvilMaxOffsets),
	}

	if file, ok := source.(*os.File); ok {
		reader.Name = file.Name()
	}
	if err = reader.readSectorTable(); err != nil {
		return nil, err
	}
	return
}

// Open parses a region held in memory.
func Open(raw []byte) (*Reader, error) {
	return NewReader(bytes.NewReader(raw))
}

func (r *Reader) readSectorTable() (err error) {
	if _, err = r.source.Seek(0, io.SeekStart); err != nil {
		return err
	}

	rawSectorData := make([]byte, anvilSectorSize)
	if _, err = io.ReadFull(r.source, rawSectorData); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrShortHeader
		}
		return err
	}

	if err = binary.Read(bytes.NewReader(rawSectorData), binary.BigEndian, r.sectorTable); err != nil {
		return
	}
	for i, offset := range r.sectorTable {
		if offset>>8 != 0 {
			r.present.Set(uint(i))
		}
	}
	return
}

func inRange(x, z int) bool {
	return x >= 0 && x < RegionChunks && z >= 0 && z < RegionChunks
}

// ReadChunk returns a stream of the uncompressed NBT of the chunk at region-local x and z.
func (r *Reader) ReadChunk(x, z int) (chunk io.Reader, err error) {
	if !r.ChunkExists(x, z) {
		return nil, ErrNoChunk
	}
	offset := r.sectorTable[x+z*RegionChunks]
	sectorNumber := offset >> 8
	occupiedSectors := offset & 0xff

	sectorData := make([]byte, occupiedSectors*anvilSectorSize)
	r.mu.Lock()
	if _, err = r.source.Seek(int64(sectorNumber)*anvilSectorSize, io.SeekStart); err == nil {
		_, err = io.ReadFull(r.source, sectorData)
	}
	r.mu.Unlock()
	if err != nil {
		return
	}

	sectorReader := bytes.NewReader(sectorData)
	var sectorHeader struct {
		Length      int32
		Compression CompressionLevel
	}
	if err = binary.Read(sectorReader, binary.BigEndian, &sectorHeader); err != nil {
		return
	}

	if sectorHeader.Length < 1 || sectorHeader.Length > int32(len(sectorData)-4) {
		return nil, ErrInvalidChunkLength
	}

	chunkStream := io.LimitReader(sectorReader, int64(sectorHeader.Length-1))
	switch sectorHeader.Compression {
	case CompressionGzip:
		return gzip.NewReader(chunkStream)
	case CompressionDeflate:
		return zlib.NewReader(chunkStream)
	default:
		return nil, ErrInvalidCompression
	}
}

// Chunk reads and decodes the chunk at region-local x and z.
func (r *Reader) Chunk(x, z int) (*Chunk, error) {
	stream, err := r.ReadChunk(x, z)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("inflate chunk %d,%d: %w", x, z, err)
	}

	var root chunkRoot
	if err = nbt.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode chunk %d,%d: %w", x, z, err)
	}
	return &root.Level, nil
}

func (r *Reader) ChunkExists(x, z int) bool {
	return inRange(x, z) && r.present.Test(uint(x+z*RegionChunks))
}

// ChunkCount returns how many chunks the sector table lists.
func (r *Reader) ChunkCount() int {
	return int(r.present.Count())
}

func (r *Reader) Close() error {
	if closer, ok := r.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
