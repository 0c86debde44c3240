package main

import (
	"encoding/json"
	"fmt"

	"voxelflow.ai/internal/observerproto"
	"voxelflow.ai/internal/sim/encoding"
	"voxelflow.ai/internal/sim/world/terrain/gen"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

type chunkCells struct {
	blocks []uint16
	meta   []uint8
}

// cache mirrors the chunks an observer session holds.
type cache struct {
	height int
	chunks map[store.ChunkKey]*chunkCells

	tick   uint64
	digest string
	// audits keeps the latest few audit lines for the status bar.
	audits []observerproto.AuditEntry
}

func newCache(height int) *cache {
	return &cache{height: height, chunks: map[store.ChunkKey]*chunkCells{}}
}

func (c *cache) apply(raw []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	switch head.Type {
	case "CHUNK_VOXELS":
		var m observerproto.ChunkVoxelsMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		if m.Encoding != encoding.CellEncoding {
			return fmt.Errorf("unsupported chunk encoding %q", m.Encoding)
		}
		blocks, meta, err := encoding.DecodeCells(m.Data, store.ChunkSize*store.ChunkSize*m.Height)
		if err != nil {
			return fmt.Errorf("chunk %d,%d: %w", m.CX, m.CZ, err)
		}
		c.height = m.Height
		c.chunks[store.ChunkKey{CX: m.CX, CZ: m.CZ}] = &chunkCells{blocks: blocks, meta: meta}
	case "CHUNK_EVICT":
		var m observerproto.ChunkEvictMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		delete(c.chunks, store.ChunkKey{CX: m.CX, CZ: m.CZ})
	case "TICK":
		var m observerproto.TickMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		c.tick, c.digest = m.Tick, m.Digest
		for _, ch := range m.Changes {
			c.set(ch.Pos, ch.Block, uint8(ch.Decay))
		}
		c.audits = append(c.audits, m.Audits...)
		if n := len(c.audits); n > 4 {
			c.audits = append(c.audits[:0], c.audits[n-4:]...)
		}
	}
	return nil
}

func (c *cache) index(x, y, z int) (*chunkCells, int, bool) {
	if y < 0 || y >= c.height {
		return nil, 0, false
	}
	ch := c.chunks[store.KeyOf(x, z)]
	if ch == nil {
		return nil, 0, false
	}
	lx, lz := gen.Mod(x, store.ChunkSize), gen.Mod(z, store.ChunkSize)
	return ch, lx + lz*store.ChunkSize + y*store.ChunkSize*store.ChunkSize, true
}

func (c *cache) set(p [3]int, block uint16, meta uint8) {
	if ch, i, ok := c.index(p[0], p[1], p[2]); ok {
		ch.blocks[i] = block
		ch.meta[i] = meta & 0x0f
	}
}

func (c *cache) at(x, y, z int) (uint16, uint8, bool) {
	ch, i, ok := c.index(x, y, z)
	if !ok {
		return 0, 0, false
	}
	return ch.blocks[i], ch.meta[i], true
}
