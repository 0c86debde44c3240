package store

import (
	"sort"

	genpkg "voxelflow.ai/internal/sim/world/terrain/gen"
)

func (s *ChunkStore) InBounds(x, y, z int) bool {
	if y < 0 || y >= s.Gen.Height {
		return false
	}
	if s.Gen.BoundaryR > 0 {
		if x < -s.Gen.BoundaryR || x > s.Gen.BoundaryR || z < -s.Gen.BoundaryR || z > s.Gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// ModifiedChunkKeys lists, sorted, the loaded chunks that were written to. Chunks loaded only to
// be read regenerate identically and are left out of digests and snapshots.
func (s *ChunkStore) ModifiedChunkKeys() []ChunkKey {
	keys := s.LoadedChunkKeys()
	out := keys[:0]
	for _, k := range keys {
		if s.Chunks[k].modified {
			out = append(out, k)
		}
	}
	return out
}

// GetBlock returns the block and meta at (x, y, z). Out-of-bounds positions read as bedrock.
func (s *ChunkStore) GetBlock(x, y, z int) (uint16, uint8) {
	if !s.InBounds(x, y, z) {
		return s.Gen.Bedrock, 0
	}
	ch := s.GetOrGenChunk(genpkg.FloorDiv(x, ChunkSize), genpkg.FloorDiv(z, ChunkSize))
	return ch.Get(genpkg.Mod(x, ChunkSize), y, genpkg.Mod(z, ChunkSize))
}

// SetBlock writes b and meta at (x, y, z) and reports whether the stored value changed. Writes
// outside the world are ignored.
func (s *ChunkStore) SetBlock(x, y, z int, b uint16, meta uint8) bool {
	if !s.InBounds(x, y, z) {
		return false
	}
	ch := s.GetOrGenChunk(genpkg.FloorDiv(x, ChunkSize), genpkg.FloorDiv(z, ChunkSize))
	return ch.Set(genpkg.Mod(x, ChunkSize), y, genpkg.Mod(z, ChunkSize), b, meta)
}

func (s *ChunkStore) GetOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.Chunks[k]; ok {
		return ch
	}
	ch := newChunk(cx, cz, s.Gen.Height)
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[k] = ch
	return ch
}

// ChunkView returns the loaded chunk at (cx, cz), or a freshly generated copy that is not kept.
// Readers outside the simulation use it so that looking at the world never loads chunks.
func (s *ChunkStore) ChunkView(cx, cz int) *Chunk {
	if ch, ok := s.Chunks[ChunkKey{CX: cx, CZ: cz}]; ok {
		return ch
	}
	ch := newChunk(cx, cz, s.Gen.Height)
	s.GenerateChunk(ch)
	return ch
}
