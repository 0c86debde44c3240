package store

import (
	"fmt"

	snapv1 "voxelflow.ai/internal/persistence/snapshot"
)

// ExportLoadedChunks converts the chunks named by keys into snapshot chunks.
func ExportLoadedChunks(chunks map[ChunkKey]*Chunk, keys []ChunkKey) []snapv1.ChunkV1 {
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := chunks[k]
		if ch == nil {
			continue
		}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		meta := make([]byte, len(ch.Meta))
		copy(meta, ch.Meta)
		out = append(out, snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: ch.Height,
			Blocks: blocks,
			Meta:   meta,
		})
	}
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks.
func ImportChunks(gen WorldGen, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore(gen)
	want := ChunkSize * ChunkSize * store.Gen.Height
	for _, ch := range chunks {
		if ch.Height != store.Gen.Height {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, store.Gen.Height)
		}
		if len(ch.Blocks) != want {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), want)
		}
		if len(ch.Meta) != want {
			return nil, fmt.Errorf("snapshot chunk meta length mismatch: got %d want %d", len(ch.Meta), want)
		}
		k := ChunkKey{CX: ch.CX, CZ: ch.CZ}
		if _, dup := store.Chunks[k]; dup {
			return nil, fmt.Errorf("snapshot chunk %d,%d appears twice", k.CX, k.CZ)
		}
		c := newChunk(ch.CX, ch.CZ, ch.Height)
		copy(c.Blocks, ch.Blocks)
		for i, m := range ch.Meta {
			c.Meta[i] = m & 0x0f
		}
		c.modified = true
		_ = c.Digest()
		store.Chunks[k] = c
	}
	return store, nil
}
