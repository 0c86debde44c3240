package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/fluid"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

// fluid.World implementation. Called only from the world loop.

type soundEvent struct {
	pos   mgl64.Vec3
	name  string
	pitch float64
}

type particleEvent struct {
	pos  mgl64.Vec3
	name string
}

func (w *World) Block(pos cube.Pos) fluid.Cell {
	id, meta := w.chunks.GetBlock(pos[0], pos[1], pos[2])
	k := w.catalogs.Blocks.Def(id).Kind()
	c := fluid.Cell{ID: id, Kind: k}
	if k != fluid.KindNone {
		c.Decay = int(meta)
	}
	return c
}

func (w *World) SetBlock(pos cube.Pos, c fluid.Cell, notify, visual bool) {
	old := w.Block(pos)
	var meta uint8
	if c.Kind != fluid.KindNone {
		meta = uint8(c.Decay & 0x0f)
	}
	if !w.chunks.SetBlock(pos[0], pos[1], pos[2], c.ID, meta) {
		return
	}
	if old.Kind != fluid.KindNone && c.Kind == fluid.KindNone && c.ID != w.blocks.Air {
		w.audit("fluid", "SOLIDIFY", pos, old.ID, c.ID, "LIQUID_CONTACT")
	}
	if visual {
		w.markChanged(pos)
	} else {
		w.silent[store.KeyOf(pos[0], pos[2])] = struct{}{}
	}
	if notify {
		w.doBlockUpdatesAround(pos)
	}
}

func (w *World) markChanged(pos cube.Pos) {
	if _, ok := w.changeSeen[pos]; ok {
		return
	}
	w.changeSeen[pos] = struct{}{}
	w.changes = append(w.changes, pos)
}

// ScheduleUpdate queues a delayed visit of pos. Delays below one tick run on the next tick.
func (w *World) ScheduleUpdate(pos cube.Pos, delay int) {
	if !w.chunks.InBounds(pos[0], pos[1], pos[2]) {
		return
	}
	if delay < 1 {
		delay = 1
	}
	w.sched.schedule(pos, w.tick.Load()+uint64(delay))
}

func (w *World) FlowableInto(c fluid.Cell) bool { return w.catalogs.Blocks.Def(c.ID).Flowable }
func (w *World) Solid(c fluid.Cell) bool        { return w.catalogs.Blocks.Def(c.ID).Solid }
func (w *World) Hardness(c fluid.Cell) float64  { return w.catalogs.Blocks.Def(c.ID).Hardness }

// BreakBlock removes the content at pos. Liquid is written over it straight after, so the air is
// neither announced nor shown.
func (w *World) BreakBlock(pos cube.Pos) {
	old := w.Block(pos)
	if old.ID == w.blocks.Air {
		return
	}
	if w.chunks.SetBlock(pos[0], pos[1], pos[2], w.blocks.Air, 0) {
		w.audit("fluid", "BREAK_BLOCK", pos, old.ID, w.blocks.Air, "WASHED_AWAY")
	}
}

func (w *World) PlaySound(pos mgl64.Vec3, s fluid.Sound) {
	ev := soundEvent{pos: pos, name: s.SoundName()}
	if f, ok := s.(fluid.FizzSound); ok {
		ev.pitch = f.Pitch
	}
	w.sounds = append(w.sounds, ev)
}

func (w *World) AddParticle(pos mgl64.Vec3, p fluid.Particle) {
	w.particles = append(w.particles, particleEvent{pos: pos, name: p.ParticleName()})
}

// doBlockUpdatesAround queues normal updates for pos and its six neighbours.
func (w *World) doBlockUpdatesAround(pos cube.Pos) {
	w.neighbours = append(w.neighbours, pos)
	pos.Neighbours(func(n cube.Pos) {
		if w.chunks.InBounds(n[0], n[1], n[2]) {
			w.neighbours = append(w.neighbours, n)
		}
	})
}

func (w *World) audit(actor, action string, pos cube.Pos, from, to uint16, reason string) {
	w.audits = append(w.audits, AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  actor,
		Action: action,
		Pos:    pos,
		From:   from,
		To:     to,
		Reason: reason,
	})
}
