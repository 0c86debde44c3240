package world

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/catalogs"
	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/encoding"
	"voxelflow.ai/internal/sim/fluid"
	"voxelflow.ai/internal/sim/world/terrain/gen"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

// World owns the block storage, the update queues and the liquid engine. All of its state is
// touched only by the goroutine running Run (or calling StepOnce); other goroutines talk to it
// through the request channels.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	blocks   fluid.Blocks
	gen      store.WorldGen

	tick atomic.Uint64

	chunks *store.ChunkStore
	sched  *scheduler
	engine *fluid.Engine

	// neighbours holds normal updates not yet delivered, in request order.
	neighbours []cube.Pos
	// queued holds edits received by Run since the last tick.
	queued []Edit

	rngSrc *rand.PCG
	rng    *rand.Rand

	// Per-tick output, reset by every step.
	changes    []cube.Pos
	changeSeen map[cube.Pos]struct{}
	sounds     []soundEvent
	particles  []particleEvent
	audits     []AuditEntry

	// silent lists chunks written without the visual flag since the last resync.
	silent map[store.ChunkKey]struct{}

	observers map[string]*observerClient

	edits         chan Edit
	flowReq       chan flowReq
	snapReq       chan snapshotReq
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics metricsBox
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	if n := len(cats.Blocks.Palette); n > encoding.MaxCellBlockID+1 {
		return nil, fmt.Errorf("block palette too large: %d ids", n)
	}

	var err error
	b := func(id string) uint16 {
		if err != nil {
			return 0
		}
		var v uint16
		v, err = cats.Blocks.MustID(id)
		return v
	}
	air := b("AIR")
	bedrock := b("BEDROCK")
	stone := b("STONE")
	dirt := b("DIRT")
	grass := b("GRASS")
	tallGrass := b("TALL_GRASS")
	cobble := b("COBBLESTONE")
	obsidian := b("OBSIDIAN")
	if err != nil {
		return nil, err
	}
	water, ok := cats.Blocks.LiquidID(fluid.KindWater)
	if !ok {
		return nil, fmt.Errorf("block catalog: no WATER liquid")
	}
	lava, ok := cats.Blocks.LiquidID(fluid.KindLava)
	if !ok {
		return nil, fmt.Errorf("block catalog: no LAVA liquid")
	}

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		blocks: fluid.Blocks{
			Air:         air,
			Water:       water,
			Lava:        lava,
			Obsidian:    obsidian,
			Cobblestone: cobble,
			Stone:       stone,
		},
		gen: store.WorldGen{
			Flat: gen.Flat{
				Seed:              cfg.Seed,
				FloorY:            cfg.FloorY,
				TallGrassPermille: cfg.TallGrassPermille,
			},
			Height:    cfg.Height,
			BoundaryR: cfg.BoundaryR,
			Air:       air,
			Bedrock:   bedrock,
			Stone:     stone,
			Dirt:      dirt,
			Grass:     grass,
			TallGrass: tallGrass,
		},
		sched:         newScheduler(),
		changeSeen:    map[cube.Pos]struct{}{},
		silent:        map[store.ChunkKey]struct{}{},
		observers:     map[string]*observerClient{},
		edits:         make(chan Edit, 1024),
		flowReq:       make(chan flowReq, 64),
		snapReq:       make(chan snapshotReq, 8),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
	}
	w.chunks = store.NewChunkStore(w.gen)
	w.rngSrc = rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x5bd1e995)
	w.rng = rand.New(w.rngSrc)
	w.engine = fluid.NewEngine(w, w.blocks, w.rng)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) {
	w.snapshotSink = ch
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

// CurrentTick is the tick the next step will run.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) BlockPalette() []string {
	if w == nil || w.catalogs == nil {
		return nil
	}
	p := w.catalogs.Blocks.Palette
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// Blocks returns the palette ids the liquid engine writes.
func (w *World) Blocks() fluid.Blocks { return w.blocks }
