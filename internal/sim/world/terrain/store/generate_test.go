package store

import (
	"testing"

	genpkg "voxelflow.ai/internal/sim/world/terrain/gen"
)

func TestGenerateFlatFloor(t *testing.T) {
	gen := WorldGen{
		Flat:      genpkg.Flat{Seed: 3, FloorY: 5, TallGrassPermille: 1000},
		Height:    16,
		Air:       0,
		Bedrock:   1,
		Stone:     2,
		Dirt:      3,
		Grass:     4,
		TallGrass: 5,
	}
	s := NewChunkStore(gen)
	want := map[int]uint16{0: 1, 1: 2, 2: 3, 3: 3, 4: 3, 5: 4, 6: 5, 7: 0, 15: 0}
	for y, b := range want {
		if got, _ := s.GetBlock(-3, y, 40); got != b {
			t.Fatalf("y=%d: got %d want %d", y, got, b)
		}
	}

	gen.Flat.TallGrassPermille = 0
	s = NewChunkStore(gen)
	if got, _ := s.GetBlock(-3, 6, 40); got != 0 {
		t.Fatalf("tall grass generated with zero chance: %d", got)
	}
}
