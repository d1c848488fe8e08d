package heightmap

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/anvil/anviltest"
)

type brokenRegion struct {
	anviltest.Region
	broken anvil.ChunkPos
}

func (r brokenRegion) Chunk(x, z int) (*anvil.Chunk, error) {
	if (anvil.ChunkPos{X: x, Z: z}) == r.broken {
		return nil, errors.New("corrupt")
	}
	return r.Region.Chunk(x, z)
}

func TestBuildCopiesColumns(t *testing.T) {
	region := anviltest.Region{
		{X: 0, Z: 0}:  anviltest.NewChunk(100, 200).Set(0, 64, 0, 1, 0).Set(15, 9, 2, 1, 0).Build(),
		{X: 3, Z: 1}:  anviltest.NewChunk(103, 201).Set(4, 255, 5, 1, 0).Build(),
		{X: 31, Z: 0}: anviltest.NewChunk(131, 200).Build(),
	}

	h, err := Build(context.Background(), region, 4)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := h.At(0, 0); got != 65 {
		t.Fatalf("expected height 65 at (0,0), got %d", got)
	}
	if got := h.At(15, 2); got != 10 {
		t.Fatalf("expected height 10 at (15,2), got %d", got)
	}
	// Heights use region-local placement; 256 saturates.
	if got := h.At(3*16+4, 1*16+5); got != 255 {
		t.Fatalf("expected clamped height 255, got %d", got)
	}
	if got := h.At(200, 300); got != 0 {
		t.Fatalf("expected absent chunk to stay 0, got %d", got)
	}

	want := []anvil.ChunkPos{{X: 0, Z: 0}, {X: 3, Z: 1}, {X: 31, Z: 0}}
	if diff := cmp.Diff(want, h.Available); diff != "" {
		t.Fatalf("available chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSkipsUnreadableChunks(t *testing.T) {
	region := brokenRegion{
		Region: anviltest.Region{
			{X: 0, Z: 0}: anviltest.NewChunk(0, 0).Set(0, 1, 0, 1, 0).Build(),
			{X: 1, Z: 0}: anviltest.NewChunk(1, 0).Set(0, 1, 0, 1, 0).Build(),
		},
		broken: anvil.ChunkPos{X: 1, Z: 0},
	}

	h, err := Build(context.Background(), region, 1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if diff := cmp.Diff([]anvil.ChunkPos{{X: 0, Z: 0}}, h.Available); diff != "" {
		t.Fatalf("available chunks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]anvil.ChunkPos{{X: 1, Z: 0}}, h.Unreadable); diff != "" {
		t.Fatalf("unreadable chunks mismatch (-want +got):\n%s", diff)
	}
	if got := h.At(16, 0); got != 0 {
		t.Fatalf("expected unreadable chunk footprint to stay 0, got %d", got)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, anviltest.Region{}, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWritePNG(t *testing.T) {
	region := anviltest.Region{{X: 0, Z: 0}: anviltest.NewChunk(0, 0).Set(2, 40, 3, 1, 0).Build()}
	h, err := Build(context.Background(), region, 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := h.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Size || b.Dy() != Size {
		t.Fatalf("unexpected image size %v", b)
	}
	r, _, _, _ := img.At(2, 3).RGBA()
	if r>>8 != 41 {
		t.Fatalf("expected pixel value 41, got %d", r>>8)
	}
}
