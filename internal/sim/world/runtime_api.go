package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/fluid"
)

// ErrNoTick is returned for a snapshot requested before the first tick completed.
var ErrNoTick = errors.New("world has not completed a tick")

type flowReq struct {
	pos      cube.Pos
	velocity mgl64.Vec3
	resp     chan FlowProbe
}

type snapshotReq struct {
	resp chan snapshotResult
}

type snapshotResult struct {
	snap snapshot.SnapshotV1
	err  error
}

// SubmitEdit queues an edit for the next tick.
func (w *World) SubmitEdit(ctx context.Context, e Edit) error {
	switch e.Op {
	case EditPlaceBlock, EditPlaceLiquid, EditBreakBlock:
	default:
		return fmt.Errorf("unknown edit op %q", e.Op)
	}
	select {
	case w.edits <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProbeFlow reads the liquid state at pos. velocity is the body velocity the flow is added to.
func (w *World) ProbeFlow(ctx context.Context, pos cube.Pos, velocity mgl64.Vec3) (FlowProbe, error) {
	req := flowReq{pos: pos, velocity: velocity, resp: make(chan FlowProbe, 1)}
	select {
	case w.flowReq <- req:
	case <-ctx.Done():
		return FlowProbe{}, ctx.Err()
	}
	select {
	case p := <-req.resp:
		return p, nil
	case <-ctx.Done():
		return FlowProbe{}, ctx.Err()
	}
}

// RequestSnapshot exports the world as of the last completed tick.
func (w *World) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	req := snapshotReq{resp: make(chan snapshotResult, 1)}
	select {
	case w.snapReq <- req:
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r.snap, r.err
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
}

func (w *World) snapshotNow() snapshotResult {
	next := w.tick.Load()
	if next == 0 {
		return snapshotResult{err: ErrNoTick}
	}
	return snapshotResult{snap: w.ExportSnapshot(next - 1)}
}

// probeFlow must run on the world loop.
func (w *World) probeFlow(pos cube.Pos, velocity mgl64.Vec3) FlowProbe {
	c := w.Block(pos)
	p := FlowProbe{
		Tick:   w.tick.Load(),
		Pos:    pos,
		Block:  w.blockName(c.ID),
		Vector: w.engine.FlowVector(pos),
		Height: w.engine.HeightPercent(pos),
		Pushed: w.engine.AddVelocity(pos, velocity),
	}
	if c.Kind != fluid.KindNone {
		p.Liquid = c.Kind.String()
		p.Decay = c.Decay
		p.Falling = fluid.Falling(c.Decay)
		p.Optimal, p.Cost = w.engine.OptimalDirections(pos, c.Kind)
	}
	return p
}

func (w *World) blockName(id uint16) string {
	p := w.catalogs.Blocks.Palette
	if int(id) < len(p) {
		return p[id]
	}
	return ""
}

func (w *World) RequestObserverJoin(ctx context.Context, req ObserverJoinRequest) error {
	select {
	case w.observerJoin <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) RequestObserverSubscribe(ctx context.Context, req ObserverSubscribeRequest) error {
	select {
	case w.observerSub <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestObserverLeave is best effort; the session is dropped on the next loop iteration.
func (w *World) RequestObserverLeave(sessionID string) {
	select {
	case w.observerLeave <- sessionID:
	default:
	}
}
