package store

import (
	"testing"

	snapv1 "voxelflow.ai/internal/persistence/snapshot"
)

func TestExportAndImportChunksRoundTrip(t *testing.T) {
	gen := WorldGen{Height: 4, Air: 0, Bedrock: 1}
	s := NewChunkStore(gen)
	s.SetBlock(17, 2, -30, 3, 0x0a)
	s.SetBlock(18, 3, -30, 9, 0)

	keys := s.LoadedChunkKeys()
	if len(keys) != 1 || keys[0] != (ChunkKey{CX: 1, CZ: -2}) {
		t.Fatalf("unexpected loaded keys: %v", keys)
	}
	exported := ExportLoadedChunks(s.Chunks, keys)
	if len(exported) != 1 || exported[0].Height != 4 {
		t.Fatalf("unexpected export: %+v", exported)
	}

	imported, err := ImportChunks(gen, exported)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if b, m := imported.GetBlock(17, 2, -30); b != 3 || m != 0x0a {
		t.Fatalf("unexpected imported block: got %d,%d", b, m)
	}
	if b, _ := imported.GetBlock(18, 3, -30); b != 9 {
		t.Fatalf("unexpected imported block: got %d", b)
	}
	if imported.Chunks[keys[0]].Digest() != s.Chunks[keys[0]].Digest() {
		t.Fatalf("digest changed across round trip")
	}
}

func TestImportChunksRejectsWrongShape(t *testing.T) {
	gen := WorldGen{Height: 2}
	n := ChunkSize * ChunkSize * 2
	cases := []snapv1.ChunkV1{
		{Height: 3, Blocks: make([]uint16, n), Meta: make([]byte, n)},
		{Height: 2, Blocks: make([]uint16, n-1), Meta: make([]byte, n)},
		{Height: 2, Blocks: make([]uint16, n), Meta: nil},
	}
	for i, ch := range cases {
		if _, err := ImportChunks(gen, []snapv1.ChunkV1{ch}); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	ok := snapv1.ChunkV1{Height: 2, Blocks: make([]uint16, n), Meta: make([]byte, n)}
	if _, err := ImportChunks(gen, []snapv1.ChunkV1{ok, ok}); err == nil {
		t.Fatalf("expected duplicate chunk error")
	}
}

func TestOutOfBoundsReadsBedrockAndIgnoresWrites(t *testing.T) {
	s := NewChunkStore(WorldGen{Height: 8, BoundaryR: 10, Bedrock: 7, Grass: 4})
	for _, p := range [][3]int{{0, -1, 0}, {0, 8, 0}, {11, 3, 0}, {0, 3, -11}} {
		if b, _ := s.GetBlock(p[0], p[1], p[2]); b != 7 {
			t.Fatalf("%v: got %d want bedrock", p, b)
		}
		if s.SetBlock(p[0], p[1], p[2], 4, 0) {
			t.Fatalf("%v: write outside the world was applied", p)
		}
	}
	if len(s.Chunks) != 0 {
		t.Fatalf("out-of-bounds access generated chunks")
	}
}

func TestSetBlockReportsChangeAndMasksMeta(t *testing.T) {
	s := NewChunkStore(WorldGen{Height: 4})
	if !s.SetBlock(0, 1, 0, 2, 0x1f) {
		t.Fatalf("first write should change the block")
	}
	if _, m := s.GetBlock(0, 1, 0); m != 0x0f {
		t.Fatalf("meta not masked: %#x", m)
	}
	if s.SetBlock(0, 1, 0, 2, 0x0f) {
		t.Fatalf("identical write reported a change")
	}
}

func TestChunkViewDoesNotLoad(t *testing.T) {
	s := NewChunkStore(WorldGen{Height: 2, Bedrock: 1})
	ch := s.ChunkView(3, 4)
	if ch.CX != 3 || ch.CZ != 4 || ch.Blocks[0] != 1 {
		t.Fatalf("unexpected view: cx=%d cz=%d b=%d", ch.CX, ch.CZ, ch.Blocks[0])
	}
	if len(s.Chunks) != 0 {
		t.Fatalf("view loaded a chunk")
	}
	s.SetBlock(3*ChunkSize, 1, 4*ChunkSize, 5, 0)
	if got := s.ChunkView(3, 4); got != s.Chunks[ChunkKey{CX: 3, CZ: 4}] {
		t.Fatalf("view of a loaded chunk should be the chunk itself")
	}
}

func TestModifiedChunkKeysSkipsReadOnlyChunks(t *testing.T) {
	s := NewChunkStore(WorldGen{Height: 4, Bedrock: 1})
	s.GetBlock(40, 1, 40)
	s.SetBlock(-1, 1, 0, 3, 0)
	s.SetBlock(0, 1, 0, s.Gen.Air, 0)
	if n := len(s.Chunks); n != 3 {
		t.Fatalf("loaded: got %d want 3", n)
	}
	got := s.ModifiedChunkKeys()
	if len(got) != 1 || got[0] != (ChunkKey{CX: -1, CZ: 0}) {
		t.Fatalf("modified: got %v", got)
	}

	imported, err := ImportChunks(s.Gen, ExportLoadedChunks(s.Chunks, got))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if keys := imported.ModifiedChunkKeys(); len(keys) != 1 {
		t.Fatalf("imported chunks should count as modified: %v", keys)
	}
}
