package store

import (
	"crypto/sha256"
	"encoding/binary"

	genpkg "voxelflow.ai/internal/sim/world/terrain/gen"
)

// ChunkSize is the horizontal edge length of a chunk.
const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is a 16 x Height x 16 column of blocks. Blocks and Meta are indexed y, then z, then x
// (x fastest). Meta holds the low 4 bits of per-block state, the raw decay for liquids.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16
	Meta   []uint8

	dirty bool
	hash  [32]byte
	// modified is set by the first write that changes the generated content.
	modified bool
}

func newChunk(cx, cz, height int) *Chunk {
	n := ChunkSize * ChunkSize * height
	return &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: height,
		Blocks: make([]uint16, n),
		Meta:   make([]uint8, n),
	}
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) (uint16, uint8) {
	i := c.index(x, y, z)
	return c.Blocks[i], c.Meta[i]
}

// Set stores b and meta at the local position and reports whether anything changed.
func (c *Chunk) Set(x, y, z int, b uint16, meta uint8) bool {
	i := c.index(x, y, z)
	meta &= 0x0f
	if c.Blocks[i] == b && c.Meta[i] == meta {
		return false
	}
	c.Blocks[i] = b
	c.Meta[i] = meta
	c.dirty = true
	c.modified = true
	return true
}

// Modified reports whether the chunk differs from what generation produced (or came from a
// snapshot).
func (c *Chunk) Modified() bool { return c.modified }

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		h.Write(c.Meta)
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Flat      genpkg.Flat
	Height    int
	BoundaryR int // blocks

	// Palette ids for generated blocks.
	Air       uint16
	Bedrock   uint16
	Stone     uint16
	Dirt      uint16
	Grass     uint16
	TallGrass uint16
}

type ChunkStore struct {
	Gen WorldGen
	// Accessed only from the world loop goroutine.
	Chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	if gen.Height <= 0 {
		gen.Height = 64
	}
	return &ChunkStore{
		Gen:    gen,
		Chunks: map[ChunkKey]*Chunk{},
	}
}

// KeyOf returns the key of the chunk holding world column (x, z).
func KeyOf(x, z int) ChunkKey {
	return ChunkKey{CX: genpkg.FloorDiv(x, ChunkSize), CZ: genpkg.FloorDiv(z, ChunkSize)}
}
