package instance

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/anvil/anviltest"
	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
	"github.com/Pessimistress/minecraft-chunk-viewer/selection"
)

func testSelection(t *testing.T) (*selection.Cache, *selection.Selection) {
	t.Helper()
	region := anviltest.Region{
		{X: 0, Z: 0}: anviltest.NewChunk(0, 0).
			Set(0, 64, 0, 1, 0).
			Set(1, 64, 0, 1, 0).
			Set(0, 65, 0, 53, 2).
			Light(0, 65, 0, 3, 4).
			Biomes(2).
			Build(),
	}
	cache := selection.New(region, blocks.Default())
	sel, err := cache.Reselect(context.Background(), []anvil.ChunkPos{{X: 0, Z: 0}})
	if err != nil {
		t.Fatalf("Reselect failed: %v", err)
	}
	return cache, sel
}

func TestRecords(t *testing.T) {
	cache, sel := testSelection(t)
	got := Records(sel, cache.IsOpaque)

	want := []Record{
		{X: 0, Y: 64, Z: 0, BlockID: 1, RenderIndex: 0, Temperature: 2, Opaque: PosX},
		{X: 1, Y: 64, Z: 0, BlockID: 1, RenderIndex: 1, Temperature: 2, Opaque: NegX},
		{X: 0, Y: 65, Z: 0, BlockID: 53, BlockData: 2, Lighting: 7, RenderIndex: 2, Temperature: float32(2 - 0.00166667), Opaque: NegY},
		{X: 0, Y: 65, Z: 0, BlockID: 53, BlockData: 10, Lighting: 7, RenderIndex: 2, Temperature: float32(2 - 0.00166667), Opaque: NegY},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordsWithoutOpacity(t *testing.T) {
	_, sel := testSelection(t)
	for _, r := range Records(sel, nil) {
		if r.Opaque != 0 {
			t.Fatalf("expected no neighbour flags, got %b", r.Opaque)
		}
	}
}

func TestWriteRead(t *testing.T) {
	cache, sel := testSelection(t)

	var buf bytes.Buffer
	if err := Write(&buf, sel, cache.IsOpaque); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("MCAI")) {
		t.Fatalf("missing magic: %x", buf.Bytes()[:4])
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := &Buffer{BlockCount: 3, Records: Records(sel, cache.IsOpaque)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("buffer mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReadEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, &selection.Selection{}, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.BlockCount != 0 || len(got.Records) != 0 {
		t.Fatalf("expected an empty buffer, got %+v", got)
	}
}

func TestReadRejectsBadInput(t *testing.T) {
	_, sel := testSelection(t)
	var valid bytes.Buffer
	if err := Write(&valid, sel, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	badMagic := append([]byte("NOPE"), valid.Bytes()[4:]...)
	if _, err := Read(bytes.NewReader(badMagic)); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	badVersion := append([]byte(nil), valid.Bytes()...)
	badVersion[4] = 9
	if _, err := Read(bytes.NewReader(badVersion)); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}

	// Claim one record more than the payload holds.
	badCount := append([]byte(nil), valid.Bytes()...)
	badCount[8]++
	if _, err := Read(bytes.NewReader(badCount)); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	truncated := valid.Bytes()[:valid.Len()-1]
	if _, err := Read(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected an error for a truncated stream")
	}
}
