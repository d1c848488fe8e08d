package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Pessimistress/minecraft-chunk-viewer/anvil"
	"github.com/Pessimistress/minecraft-chunk-viewer/viewer"
)

func TestParseChunks(t *testing.T) {
	info := &viewer.RegionInfo{Available: []anvil.ChunkPos{{X: 3, Z: 4}, {X: 5, Z: 6}}}

	got, err := parseChunks([]string{"1,2", " 31, 0"}, info)
	if err != nil {
		t.Fatalf("parseChunks failed: %v", err)
	}
	if diff := cmp.Diff([]anvil.ChunkPos{{X: 1, Z: 2}, {X: 31, Z: 0}}, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}

	got, err = parseChunks(nil, info)
	if err != nil {
		t.Fatalf("parseChunks failed: %v", err)
	}
	if diff := cmp.Diff([]anvil.ChunkPos{{X: 3, Z: 4}}, got); diff != "" {
		t.Fatalf("first available chunk mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"1", "a,b", "32,0", "0,-1", "1,2,3"} {
		if _, err := parseChunks([]string{bad}, info); err == nil {
			t.Fatalf("expected an error for %q", bad)
		}
	}
	if _, err := parseChunks(nil, &viewer.RegionInfo{}); err == nil {
		t.Fatal("expected an error for an empty region")
	}
}
