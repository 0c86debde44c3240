package world

import (
	"fmt"
	"strings"
	"time"

	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/fluid"
)

// stepInternal runs one tick: external edits, due scheduled visits, then normal updates. Whatever
// the tick produced is logged and streamed before the tick counter advances.
func (w *World) stepInternal(edits []Edit) string {
	nowTick := w.tick.Load()
	start := time.Now()

	applied := make([]Edit, 0, len(edits))
	for _, e := range edits {
		if err := w.applyEdit(e); err != nil {
			w.audit(actorOf(e), string(e.Op), cube.Pos(e.Pos), 0, 0, "REJECTED: "+err.Error())
			continue
		}
		applied = append(applied, e)
	}

	for {
		v, ok := w.sched.popDue(nowTick)
		if !ok {
			break
		}
		w.engine.Update(v.pos, fluid.UpdateScheduled)
	}
	w.drainNeighbourUpdates()

	digest := w.stateDigest(nowTick)

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Edits: applied, Digest: digest})
	}
	if w.auditLogger != nil {
		for _, a := range w.audits {
			_ = w.auditLogger.WriteAudit(a)
		}
	}

	w.stepObservers(nowTick, digest)

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && nowTick != 0 && nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
		}
	}

	w.resetTickOutput()
	w.recordMetrics(nowTick, time.Since(start))
	w.tick.Add(1)
	return digest
}

// drainNeighbourUpdates delivers queued normal updates, including the ones queued while draining,
// up to the per-tick cap. Updates over the cap stay queued for the next tick.
func (w *World) drainNeighbourUpdates() {
	budget := w.cfg.MaxNeighbourUpdates
	i := 0
	for ; i < len(w.neighbours) && i < budget; i++ {
		w.engine.Update(w.neighbours[i], fluid.UpdateNormal)
	}
	rest := copy(w.neighbours, w.neighbours[i:])
	clear(w.neighbours[rest:])
	w.neighbours = w.neighbours[:rest]
}

func (w *World) resetTickOutput() {
	w.changes = w.changes[:0]
	clear(w.changeSeen)
	w.sounds = w.sounds[:0]
	w.particles = w.particles[:0]
	w.audits = w.audits[:0]
}

func actorOf(e Edit) string {
	if e.Actor == "" {
		return "edit"
	}
	return e.Actor
}

func (w *World) applyEdit(e Edit) error {
	pos := cube.Pos(e.Pos)
	if !w.chunks.InBounds(pos[0], pos[1], pos[2]) {
		return fmt.Errorf("position %v outside the world", pos)
	}
	old := w.Block(pos)

	var next fluid.Cell
	switch e.Op {
	case EditPlaceBlock:
		id, ok := w.catalogs.Blocks.Index[strings.ToUpper(e.Block)]
		if !ok {
			return fmt.Errorf("unknown block %q", e.Block)
		}
		if k := w.catalogs.Blocks.Def(id).Kind(); k != fluid.KindNone {
			return fmt.Errorf("use %s to place %s", EditPlaceLiquid, k)
		}
		next = fluid.Cell{ID: id}
	case EditPlaceLiquid:
		k, err := fluid.ParseKind(strings.ToUpper(e.Liquid))
		if err != nil {
			return err
		}
		if k == fluid.KindNone {
			return fmt.Errorf("missing liquid")
		}
		id, _ := w.catalogs.Blocks.LiquidID(k)
		next = fluid.Cell{ID: id, Kind: k}
	case EditBreakBlock:
		if w.catalogs.Blocks.Def(old.ID).Hardness < 0 {
			return fmt.Errorf("block at %v is unbreakable", pos)
		}
		next = fluid.Cell{ID: w.blocks.Air}
	default:
		return fmt.Errorf("unknown edit op %q", e.Op)
	}

	w.SetBlock(pos, next, true, true)
	w.audit(actorOf(e), string(e.Op), pos, old.ID, next.ID, "")
	return nil
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests. The edits passed replace any edits a
// restored snapshot had queued, since the tick log already records those at the tick they ran.
func (w *World) StepOnce(edits []Edit) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.queued = nil
	return tick, w.stepInternal(edits)
}

// stepQueued runs one tick with the edits Run has queued since the last one.
func (w *World) stepQueued() string {
	edits := w.queued
	w.queued = nil
	return w.stepInternal(edits)
}
