package fluid

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/sim/cube"
)

// Cell is the state of one block position as seen by the liquid engine.
type Cell struct {
	// ID is the catalog palette id of the block. The engine treats it as opaque.
	ID uint16
	// Kind is the liquid held by the cell, KindNone for every other block.
	Kind Kind
	// Decay is the raw decay of a liquid cell: bits 0-2 magnitude, bit 3 falling marker.
	Decay int
}

// Blocks holds the palette ids the engine writes into the world.
type Blocks struct {
	Air   uint16
	Water uint16
	Lava  uint16

	// Obsidian replaces a lava source touching water.
	Obsidian uint16
	// Cobblestone replaces weak flowing lava touching water.
	Cobblestone uint16
	// Stone replaces water that lava flows down onto.
	Stone uint16
}

func (b Blocks) liquid(k Kind, decay int) Cell {
	k.mustLiquid()
	id := b.Water
	if k == KindLava {
		id = b.Lava
	}
	return Cell{ID: id, Kind: k, Decay: decay}
}

func (b Blocks) solid(id uint16) Cell { return Cell{ID: id} }

// World is the block storage, classification and effect sink the engine runs against. Positions
// that are out of range or not loaded must read as a solid, non-flowable block.
type World interface {
	Block(pos cube.Pos) Cell
	// SetBlock writes c at pos. notify requests normal updates for pos and its neighbours; visual
	// requests the change be broadcast to viewers immediately.
	SetBlock(pos cube.Pos, c Cell, notify, visual bool)
	// ScheduleUpdate requests a scheduled visit of pos after delay ticks.
	ScheduleUpdate(pos cube.Pos, delay int)

	FlowableInto(c Cell) bool
	Solid(c Cell) bool
	// Hardness is the mining hardness of c. Negative values mark unbreakable blocks.
	Hardness(c Cell) float64
	// BreakBlock destroys the content at pos as if it were mined, before liquid replaces it.
	BreakBlock(pos cube.Pos)

	PlaySound(pos mgl64.Vec3, s Sound)
	AddParticle(pos mgl64.Vec3, p Particle)
}

// Rand is the random source used for lava damping and effect jitter. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
}

// UpdateType is the reason the engine is visiting a position.
type UpdateType int

const (
	// UpdateNormal is sent when a block at or next to the position changed.
	UpdateNormal UpdateType = iota + 1
	// UpdateScheduled is a delayed visit requested through World.ScheduleUpdate.
	UpdateScheduled
)

func (t UpdateType) String() string {
	switch t {
	case UpdateNormal:
		return "normal"
	case UpdateScheduled:
		return "scheduled"
	}
	return "unknown"
}
