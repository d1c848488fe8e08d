// Package instance packs a selection into the flat per-block buffer a GPU renderer
// uploads as instance attributes.
//
// The stream is a fixed header followed by one zstd frame holding the records:
//
//	magic "MCAI" | version uint32 | count uint32 | blockCount uint32
//	compressed size uint32 | uncompressed size uint32 | zstd(records)
//
// All integers are little-endian.
package instance

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/Pessimistress/minecraft-chunk-viewer/selection"
)

const Version = 1

var magic = [4]byte{'M', 'C', 'A', 'I'}

var (
	ErrBadMagic   = errors.New("instance: not an instance buffer")
	ErrBadVersion = errors.New("instance: unsupported version")
	ErrCorrupt    = errors.New("instance: corrupt record data")
)

// Neighbour bits of Record.Opaque, set when the block on that side is opaque.
const (
	NegX = 1 << iota
	PosX
	NegY
	PosY
	NegZ
	PosZ
)

// Record is the wire form of one selection record.
type Record struct {
	X, Y, Z     int32
	BlockID     uint16
	BlockData   uint8
	Lighting    uint8
	RenderIndex uint32
	Temperature float32
	Humidity    float32
	Opaque      uint8
}

type header struct {
	Magic      [4]byte
	Version    uint32
	Count      uint32
	BlockCount uint32
}

// Buffer is a decoded instance stream.
type Buffer struct {
	BlockCount int
	Records    []Record
}

// OpaqueFunc reports whether the block at world coordinates is opaque.
type OpaqueFunc func(x, y, z int) bool

// Records converts sel into wire records. opaque may be nil, leaving every neighbour flag
// clear.
func Records(sel *selection.Selection, opaque OpaqueFunc) []Record {
	out := make([]Record, len(sel.Data))
	for i := range sel.Data {
		r := &sel.Data[i]
		out[i] = Record{
			X:           int32(r.Pos.X),
			Y:           int32(r.Pos.Y),
			Z:           int32(r.Pos.Z),
			BlockID:     uint16(r.BlockID),
			BlockData:   uint8(r.BlockData),
			Lighting:    uint8(r.Lighting),
			RenderIndex: uint32(r.RenderIndex),
			Temperature: float32(r.Temperature()),
			Humidity:    float32(r.Humidity()),
		}
		if opaque != nil {
			out[i].Opaque = neighbours(opaque, r.Pos.X, r.Pos.Y, r.Pos.Z)
		}
	}
	return out
}

func neighbours(opaque OpaqueFunc, x, y, z int) (flags uint8) {
	if opaque(x-1, y, z) {
		flags |= NegX
	}
	if opaque(x+1, y, z) {
		flags |= PosX
	}
	if opaque(x, y-1, z) {
		flags |= NegY
	}
	if opaque(x, y+1, z) {
		flags |= PosY
	}
	if opaque(x, y, z-1) {
		flags |= NegZ
	}
	if opaque(x, y, z+1) {
		flags |= PosZ
	}
	return
}

// Write encodes sel to writer.
func Write(writer io.Writer, sel *selection.Selection, opaque OpaqueFunc) (err error) {
	records := Records(sel, opaque)

	h := header{
		Magic:      magic,
		Version:    Version,
		Count:      uint32(len(records)),
		BlockCount: uint32(sel.BlockCount),
	}
	if err = binary.Write(writer, binary.LittleEndian, h); err != nil {
		return
	}

	var raw bytes.Buffer
	if err = binary.Write(&raw, binary.LittleEndian, records); err != nil {
		return
	}
	return writeZstdCompressed(writer, raw)
}

func writeZstdCompressed(writer io.Writer, buf bytes.Buffer) (err error) {
	uncompressedSize := buf.Len()

	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	if err != nil {
		return
	}
	if _, err = buf.WriteTo(zw); err != nil {
		zw.Close()
		return
	}
	if err = zw.Close(); err != nil {
		return
	}

	sizes := [2]uint32{uint32(compressed.Len()), uint32(uncompressedSize)}
	if err = binary.Write(writer, binary.LittleEndian, sizes); err != nil {
		return
	}
	_, err = compressed.WriteTo(writer)
	return
}

// Read decodes a stream produced by Write.
func Read(reader io.Reader) (*Buffer, error) {
	var h header
	if err := binary.Read(reader, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read instance header: %w", err)
	}
	if h.Magic != magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}

	var sizes [2]uint32
	if err := binary.Read(reader, binary.LittleEndian, &sizes); err != nil {
		return nil, fmt.Errorf("read instance sizes: %w", err)
	}
	compressed := make([]byte, sizes[0])
	if _, err := io.ReadFull(reader, compressed); err != nil {
		return nil, fmt.Errorf("read instance records: %w", err)
	}

	raw, err := decodeZstd(compressed, int(sizes[1]))
	if err != nil {
		return nil, err
	}
	if uint32(len(raw)) != sizes[1] || len(raw) != int(h.Count)*binary.Size(Record{}) {
		return nil, fmt.Errorf("%w: %d bytes for %d records", ErrCorrupt, len(raw), h.Count)
	}

	buf := &Buffer{
		BlockCount: int(h.BlockCount),
		Records:    make([]Record, h.Count),
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, buf.Records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return buf, nil
}

func decodeZstd(compressed []byte, size int) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return raw, nil
}
