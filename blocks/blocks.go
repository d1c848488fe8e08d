// Package blocks holds the static block-definition and biome tables. Both are loaded once
// and shared read-only by every decoder.
package blocks

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Render models referenced by block definitions.
const (
	ModelBlock  = "block"
	ModelStairs = "stairs"
)

// DefaultBiomeID is the biome assumed for every column of a chunk that carries no biome
// array.
const DefaultBiomeID = 4

//go:embed data/blocks.json
var blocksJSON []byte

//go:embed data/biomes.json
var biomesJSON []byte

//go:embed data/blocks.schema.json
var blocksSchema string

//go:embed data/biomes.schema.json
var biomesSchema string

type BlockDef struct {
	ID           int    `json:"-"`
	Data         int    `json:"-"`
	Name         string `json:"name"`
	Model        string `json:"model,omitempty"`
	Opaque       bool   `json:"opaque,omitempty"`
	BiomeShading bool   `json:"biomeShading,omitempty"`
}

type BiomeDef struct {
	ID          int     `json:"-"`
	Name        string  `json:"name"`
	Temperature float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
}

type blockKey struct {
	id, data int
}

// Tables resolves block and biome ids to their definitions.
type Tables struct {
	blocks       map[blockKey]*BlockDef
	biomes       map[int]*BiomeDef
	defaultBiome *BiomeDef
	missingBiome int
}

// Default returns the tables compiled into the binary.
func Default() *Tables {
	t, err := Parse(blocksJSON, biomesJSON)
	if err != nil {
		panic("blocks: embedded tables are invalid: " + err.Error())
	}
	return t
}

// LoadFiles reads tables from disk. An empty path selects the embedded table.
func LoadFiles(blocksPath, biomesPath string) (*Tables, error) {
	rawBlocks, rawBiomes := blocksJSON, biomesJSON
	var err error
	if blocksPath != "" {
		if rawBlocks, err = os.ReadFile(blocksPath); err != nil {
			return nil, err
		}
	}
	if biomesPath != "" {
		if rawBiomes, err = os.ReadFile(biomesPath); err != nil {
			return nil, err
		}
	}
	return Parse(rawBlocks, rawBiomes)
}

// Parse validates and decodes a block table keyed by "id:data" and a biome table keyed by
// biome id plus a mandatory "default" entry.
func Parse(rawBlocks, rawBiomes []byte) (*Tables, error) {
	if err := validate("blocks.schema.json", blocksSchema, rawBlocks); err != nil {
		return nil, fmt.Errorf("blocks table: %w", err)
	}
	if err := validate("biomes.schema.json", biomesSchema, rawBiomes); err != nil {
		return nil, fmt.Errorf("biomes table: %w", err)
	}

	var blockDefs map[string]*BlockDef
	if err := json.Unmarshal(rawBlocks, &blockDefs); err != nil {
		return nil, fmt.Errorf("blocks table: %w", err)
	}
	var biomeDefs map[string]*BiomeDef
	if err := json.Unmarshal(rawBiomes, &biomeDefs); err != nil {
		return nil, fmt.Errorf("biomes table: %w", err)
	}

	t := &Tables{
		blocks: make(map[blockKey]*BlockDef, len(blockDefs)),
		biomes: make(map[int]*BiomeDef, len(biomeDefs)),

		missingBiome: DefaultBiomeID,
	}
	for key, def := range blockDefs {
		id, data, err := parseBlockKey(key)
		if err != nil {
			return nil, fmt.Errorf("blocks table: %w", err)
		}
		def.ID, def.Data = id, data
		if def.Model == "" {
			def.Model = ModelBlock
		}
		t.blocks[blockKey{id, data}] = def
	}
	for key, def := range biomeDefs {
		if key == "default" {
			def.ID = -1
			t.defaultBiome = def
			continue
		}
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("biomes table: bad biome id %q", key)
		}
		def.ID = id
		t.biomes[id] = def
	}
	return t, nil
}

func parseBlockKey(key string) (id, data int, err error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad block key %q", key)
	}
	if id, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("bad block key %q", key)
	}
	if data, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("bad block key %q", key)
	}
	return id, data, nil
}

func validate(url, schema string, raw []byte) error {
	s, err := jsonschema.CompileString(url, schema)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.Validate(v)
}

// Block resolves a block definition: the exact (id, data) variant first, then (id, 0).
// The second result is false when neither is defined.
func (t *Tables) Block(id, data int) (*BlockDef, bool) {
	if def, ok := t.blocks[blockKey{id, data}]; ok {
		return def, true
	}
	def, ok := t.blocks[blockKey{id, 0}]
	return def, ok
}

// Biome resolves a biome id, falling back to the default entry. It never returns nil.
func (t *Tables) Biome(id int) *BiomeDef {
	if def, ok := t.biomes[id]; ok {
		return def
	}
	return t.defaultBiome
}

// MissingBiome is the biome id used for chunks without biome data.
func (t *Tables) MissingBiome() int {
	return t.missingBiome
}

// SetMissingBiome overrides DefaultBiomeID for chunks without biome data. Call it before
// the tables are shared.
func (t *Tables) SetMissingBiome(id int) {
	t.missingBiome = id
}

// Len returns the number of block definitions.
func (t *Tables) Len() int {
	return len(t.blocks)
}
