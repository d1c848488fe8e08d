package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, "workers: 3\nlog_level: debug\ndefault_biome: 2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := &Config{Workers: 3, LogLevel: "debug", Listen: ":8080", DefaultBiome: 2}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":    "workers: [",
		"workers":   "workers: 0\n",
		"log level": "log_level: loud\n",
		"biome":     "default_biome: 300\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, content)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestMergeKeepsExplicitFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 7
	cfg.Listen = ":9000"
	fromFile := &Config{Workers: 2, LogLevel: "warn", Listen: ":1234", BlocksFile: "b.json", DefaultBiome: 1}

	Merge(cfg, fromFile, map[string]bool{"workers": true, "listen": true})

	want := &Config{Workers: 7, LogLevel: "warn", Listen: ":9000", BlocksFile: "b.json", DefaultBiome: 1}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultWorkers(t *testing.T) {
	if got := DefaultConfig().Workers; got != runtime.NumCPU() {
		t.Fatalf("expected %d workers, got %d", runtime.NumCPU(), got)
	}
}

func TestTablesAppliesDefaultBiome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultBiome = 2
	tables, err := cfg.Tables()
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if got := tables.MissingBiome(); got != 2 {
		t.Fatalf("expected missing biome 2, got %d", got)
	}
}
