package store

import genpkg "voxelflow.ai/internal/sim/world/terrain/gen"

func (s *ChunkStore) GenerateChunk(ch *Chunk) {
	for y := 0; y < ch.Height; y++ {
		for z := 0; z < ChunkSize; z++ {
			for x := 0; x < ChunkSize; x++ {
				wx := ch.CX*ChunkSize + x
				wz := ch.CZ*ChunkSize + z
				ch.Blocks[ch.index(x, y, z)] = s.layerBlock(s.Gen.Flat.LayerAt(wx, y, wz))
			}
		}
	}
}

func (s *ChunkStore) layerBlock(l genpkg.Layer) uint16 {
	switch l {
	case genpkg.LayerBedrock:
		return s.Gen.Bedrock
	case genpkg.LayerStone:
		return s.Gen.Stone
	case genpkg.LayerDirt:
		return s.Gen.Dirt
	case genpkg.LayerGrass:
		return s.Gen.Grass
	case genpkg.LayerTallGrass:
		return s.Gen.TallGrass
	}
	return s.Gen.Air
}
