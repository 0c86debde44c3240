package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"voxelflow.ai/internal/sim/fluid"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	// byID mirrors Defs in palette order for hot lookups.
	byID []BlockDef
}

type BlockDef struct {
	ID string `json:"id"`
	// Solid blocks hold up liquid and count as a floor for new water sources.
	Solid bool `json:"solid"`
	// Flowable blocks may be replaced by spreading liquid.
	Flowable bool `json:"flowable"`
	// Hardness is the mining hardness. Negative means unbreakable.
	Hardness float64 `json:"hardness"`
	// Liquid is "WATER" or "LAVA" for liquid blocks.
	Liquid string `json:"liquid,omitempty"`

	kind fluid.Kind
}

// Kind returns the parsed liquid kind of the block.
func (d BlockDef) Kind() fluid.Kind { return d.kind }

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := ParseBlocks(raw, out); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	return nil
}

// ParseBlocks builds a block catalog from the JSON array of block definitions.
func ParseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	out.Defs = map[string]BlockDef{}
	liquids := map[fluid.Kind]string{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("duplicate id %s", d.ID)
		}
		k, err := fluid.ParseKind(d.Liquid)
		if err != nil {
			return fmt.Errorf("%s: %w", d.ID, err)
		}
		if k != fluid.KindNone {
			if other, ok := liquids[k]; ok {
				return fmt.Errorf("%s: liquid %s already defined by %s", d.ID, d.Liquid, other)
			}
			if d.Solid {
				return fmt.Errorf("%s: liquid blocks cannot be solid", d.ID)
			}
			liquids[k] = d.ID
		}
		d.kind = k
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	out.byID = make([]BlockDef, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
		out.byID[i] = out.Defs[id]
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// Def returns the definition of palette id b. Unknown ids return the zero definition, which is
// neither solid nor flowable.
func (c *BlockCatalog) Def(b uint16) BlockDef {
	if int(b) >= len(c.byID) {
		return BlockDef{}
	}
	return c.byID[b]
}

// MustID returns the palette id of a block that the caller requires to exist.
func (c *BlockCatalog) MustID(name string) (uint16, error) {
	id, ok := c.Index[name]
	if !ok {
		return 0, fmt.Errorf("block catalog: missing %s", name)
	}
	return id, nil
}

// LiquidID returns the palette id of the block holding liquid k.
func (c *BlockCatalog) LiquidID(k fluid.Kind) (uint16, bool) {
	for i, d := range c.byID {
		if d.kind == k && k != fluid.KindNone {
			return uint16(i), true
		}
	}
	return 0, false
}
