package anvil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/Pessimistress/minecraft-chunk-viewer/nbt"
)

const headerSectors = 2 // location table + timestamp table

// Writer assembles a region file from decoded chunks. It is used to build fixtures and to
// cut sub-regions out of existing files.
type Writer struct {
	Compression CompressionLevel
	Timestamp   uint32

	chunks map[int][]byte
}

func NewWriter() *Writer {
	return &Writer{Compression: CompressionDeflate, chunks: make(map[int][]byte)}
}

// Put encodes c and stores it at region-local x and z, replacing any previous chunk.
func (w *Writer) Put(x, z int, c *Chunk) error {
	if !inRange(x, z) {
		return fmt.Errorf("anvil: chunk %d,%d outside region", x, z)
	}

	var raw bytes.Buffer
	if err := nbt.Marshal(&raw, chunkRoot{Level: *c}); err != nil {
		return fmt.Errorf("encode chunk %d,%d: %w", x, z, err)
	}

	var compressed bytes.Buffer
	var zw io.WriteCloser
	switch w.Compression {
	case CompressionGzip:
		zw = gzip.NewWriter(&compressed)
	case CompressionDeflate:
		zw = zlib.NewWriter(&compressed)
	default:
		return ErrInvalidCompression
	}
	if _, err := raw.WriteTo(zw); err != nil {
		return fmt.Errorf("compress chunk %d,%d: %w", x, z, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress chunk %d,%d: %w", x, z, err)
	}

	// length (4 bytes, counts the compression byte) + compression byte + payload
	payload := make([]byte, 5, 5+compressed.Len())
	binary.BigEndian.PutUint32(payload[0:4], uint32(compressed.Len()+1))
	payload[4] = byte(w.Compression)
	w.chunks[x+z*RegionChunks] = append(payload, compressed.Bytes()...)
	return nil
}

// WriteTo writes the complete region, chunks laid out in index order.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	locations := make([]byte, anvilSectorSize)
	timestamps := make([]byte, anvilSectorSize)

	indices := make([]int, 0, len(w.chunks))
	for idx := range w.chunks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var data bytes.Buffer
	currentSector := uint32(headerSectors)
	for _, idx := range indices {
		payload := w.chunks[idx]
		sectorCount := uint32((len(payload) + anvilSectorSize - 1) / anvilSectorSize)
		if sectorCount > 0xff {
			return 0, fmt.Errorf("anvil: chunk %d,%d needs %d sectors", idx%RegionChunks, idx/RegionChunks, sectorCount)
		}

		off := idx * 4
		binary.BigEndian.PutUint32(locations[off:off+4], currentSector<<8|sectorCount)
		binary.BigEndian.PutUint32(timestamps[off:off+4], w.Timestamp)

		data.Write(payload)
		if pad := int(sectorCount)*anvilSectorSize - len(payload); pad > 0 {
			data.Write(make([]byte, pad))
		}
		currentSector += sectorCount
	}

	var n int64
	for _, part := range [][]byte{locations, timestamps, data.Bytes()} {
		written, err := out.Write(part)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Bytes returns the encoded region.
func (w *Writer) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = w.WriteTo(&buf)
	return buf.Bytes()
}
