package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/sim/cube"
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry is the replay record of one tick: the external edits applied and the resulting
// state digest.
type TickLogEntry struct {
	Tick   uint64 `json:"tick"`
	Edits  []Edit `json:"edits,omitempty"`
	Digest string `json:"digest"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK"
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Reason string `json:"reason,omitempty"`
}

type EditOp string

const (
	EditPlaceBlock  EditOp = "PLACE_BLOCK"
	EditPlaceLiquid EditOp = "PLACE_LIQUID"
	EditBreakBlock  EditOp = "BREAK_BLOCK"
)

// Edit is an external change to the world, applied at the start of the next tick.
type Edit struct {
	Op    EditOp `json:"op"`
	Pos   [3]int `json:"pos"`
	Block string `json:"block,omitempty"`
	// Liquid is WATER or LAVA for EditPlaceLiquid. The liquid is placed as a source.
	Liquid string `json:"liquid,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// FlowProbe is a read of the liquid state around one position.
type FlowProbe struct {
	Tick    uint64
	Pos     cube.Pos
	Block   string
	Liquid  string
	Decay   int
	Falling bool
	Height  float64
	Vector  mgl64.Vec3
	// Pushed is the probe velocity after the flow vector was added to it.
	Pushed  mgl64.Vec3
	Optimal [4]bool
	Cost    [4]int
}
