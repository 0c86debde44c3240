package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the world parameters an operator can change without a rebuild. Zero values fall
// back to Defaults through Normalize.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz        int   `yaml:"tick_rate_hz"`
	Height            int   `yaml:"height"`
	BoundaryR         int   `yaml:"boundary_r"`
	FloorY            int   `yaml:"floor_y"`
	TallGrassPermille int   `yaml:"tall_grass_permille"`
	Seed              int64 `yaml:"seed"`

	SnapshotEveryTicks    int `yaml:"snapshot_every_ticks"`
	ChunkResyncEveryTicks int `yaml:"chunk_resync_every_ticks"`
	MaxNeighbourUpdates   int `yaml:"max_neighbour_updates"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:       "0.1",
		TickRateHz:            20,
		Height:                64,
		BoundaryR:             512,
		FloorY:                16,
		TallGrassPermille:     40,
		Seed:                  1337,
		SnapshotEveryTicks:    3000,
		ChunkResyncEveryTicks: 20,
		MaxNeighbourUpdates:   65536,
	}
}

// Normalize fills unset fields from Defaults and clamps values the world cannot run with.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.TickRateHz > 1000 {
		t.TickRateHz = 1000
	}
	if t.Height <= 0 {
		t.Height = d.Height
	}
	if t.BoundaryR <= 0 {
		t.BoundaryR = d.BoundaryR
	}
	if t.FloorY <= 0 || t.FloorY >= t.Height-1 {
		t.FloorY = t.Height / 4
	}
	if t.TallGrassPermille < 0 {
		t.TallGrassPermille = 0
	}
	if t.TallGrassPermille > 1000 {
		t.TallGrassPermille = 1000
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.ChunkResyncEveryTicks <= 0 {
		t.ChunkResyncEveryTicks = d.ChunkResyncEveryTicks
	}
	if t.MaxNeighbourUpdates <= 0 {
		t.MaxNeighbourUpdates = d.MaxNeighbourUpdates
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	t.Normalize()
	return t, nil
}
