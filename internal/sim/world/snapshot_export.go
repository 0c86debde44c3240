package world

import (
	"fmt"

	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

// ExportSnapshot captures the world as it stands after tick nowTick ran, so that importing it and
// stepping resumes at nowTick+1. Edits queued by Run for the next tick are carried along. Must be
// called from the world loop.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	pending := make([][3]int, 0, len(w.neighbours))
	for _, n := range w.neighbours {
		pending = append(pending, n)
	}
	queued := make([]snapshot.EditV1, 0, len(w.queued))
	for _, e := range w.queued {
		queued = append(queued, snapshot.EditV1{Op: string(e.Op), Pos: e.Pos, Block: e.Block, Liquid: e.Liquid, Actor: e.Actor})
	}
	rng, _ := w.rngSrc.MarshalBinary()
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:                  w.cfg.Seed,
		TickRate:              w.cfg.TickRateHz,
		Height:                w.cfg.Height,
		BoundaryR:             w.cfg.BoundaryR,
		FloorY:                w.cfg.FloorY,
		TallGrassPermille:     w.cfg.TallGrassPermille,
		SnapshotEveryTicks:    w.cfg.SnapshotEveryTicks,
		ChunkResyncEveryTicks: w.cfg.ChunkResyncEveryTicks,
		MaxNeighbourUpdates:   w.cfg.MaxNeighbourUpdates,
		PaletteDigest:         w.catalogs.Blocks.PaletteDigest,
		Chunks:                store.ExportLoadedChunks(w.chunks.Chunks, w.chunks.ModifiedChunkKeys()),
		Scheduled:             w.sched.export(),
		NextSeq:               w.sched.nextSeq,
		Pending:               pending,
		Queued:                queued,
		RNG:                   rng,
	}
}

// ImportSnapshot replaces the world state with s. The next step runs tick s.Header.Tick+1.
// Observers are kept; their chunk caches are resent.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.PaletteDigest != w.catalogs.Blocks.PaletteDigest {
		return fmt.Errorf("snapshot palette digest %q does not match block catalog %q", s.PaletteDigest, w.catalogs.Blocks.PaletteDigest)
	}

	cfg := w.cfg
	cfg.ID = s.Header.WorldID
	cfg.Seed = s.Seed
	cfg.TickRateHz = s.TickRate
	cfg.Height = s.Height
	cfg.BoundaryR = s.BoundaryR
	cfg.FloorY = s.FloorY
	cfg.TallGrassPermille = s.TallGrassPermille
	cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	cfg.ChunkResyncEveryTicks = s.ChunkResyncEveryTicks
	cfg.MaxNeighbourUpdates = s.MaxNeighbourUpdates
	cfg.applyDefaults()

	gen := w.gen
	gen.Flat.Seed = cfg.Seed
	gen.Flat.FloorY = cfg.FloorY
	gen.Flat.TallGrassPermille = cfg.TallGrassPermille
	gen.Height = cfg.Height
	gen.BoundaryR = cfg.BoundaryR

	chunks, err := store.ImportChunks(gen, s.Chunks)
	if err != nil {
		return err
	}
	if err := w.rngSrc.UnmarshalBinary(s.RNG); err != nil {
		return fmt.Errorf("snapshot rng: %w", err)
	}

	w.cfg = cfg
	w.gen = gen
	w.chunks = chunks
	w.sched = importScheduler(s.Scheduled, s.NextSeq)
	w.neighbours = w.neighbours[:0]
	for _, p := range s.Pending {
		w.neighbours = append(w.neighbours, cube.Pos(p))
	}
	w.queued = w.queued[:0]
	for _, e := range s.Queued {
		w.queued = append(w.queued, Edit{Op: EditOp(e.Op), Pos: e.Pos, Block: e.Block, Liquid: e.Liquid, Actor: e.Actor})
	}
	w.resetTickOutput()
	clear(w.silent)
	for _, c := range w.observers {
		c.resendAll()
	}
	w.tick.Store(s.Header.Tick + 1)
	return nil
}
