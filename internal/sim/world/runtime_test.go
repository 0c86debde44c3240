package world

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/observerproto"
	"voxelflow.ai/internal/persistence/snapshot"
	"voxelflow.ai/internal/sim/cube"
	"voxelflow.ai/internal/sim/encoding"
	"voxelflow.ai/internal/sim/fluid"
	"voxelflow.ai/internal/sim/world/terrain/store"
)

func TestSchedulerOrdersAndCoalesces(t *testing.T) {
	s := newScheduler()
	a, b, c := cube.Pos{1, 0, 0}, cube.Pos{2, 0, 0}, cube.Pos{3, 0, 0}
	s.schedule(b, 5)
	s.schedule(a, 5)
	s.schedule(c, 3)
	if s.schedule(a, 5) {
		t.Fatalf("duplicate (pos, tick) should be coalesced")
	}
	if !s.schedule(a, 6) {
		t.Fatalf("same pos at a later tick is a new visit")
	}

	if _, ok := s.popDue(2); ok {
		t.Fatalf("nothing is due at tick 2")
	}
	var got []cube.Pos
	for {
		v, ok := s.popDue(5)
		if !ok {
			break
		}
		got = append(got, v.pos)
	}
	want := []cube.Pos{c, b, a}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v want %v", got, want)
		}
	}
	if s.len() != 1 {
		t.Fatalf("remaining: got %d want 1", s.len())
	}
	// Popped visits can be requested again.
	if !s.schedule(b, 5) {
		t.Fatalf("re-scheduling a popped visit was dropped")
	}
}

func TestSchedulerExportImport(t *testing.T) {
	s := newScheduler()
	s.schedule(cube.Pos{1, 2, 3}, 10)
	s.schedule(cube.Pos{4, 5, 6}, 8)
	s.schedule(cube.Pos{7, 8, 9}, 10)

	out := s.export()
	if len(out) != 3 || out[0].Tick != 8 || out[1].Pos != [3]int{1, 2, 3} {
		t.Fatalf("unexpected export order: %+v", out)
	}
	r := importScheduler(out, 0)
	if r.nextSeq != s.nextSeq {
		t.Fatalf("nextSeq: got %d want %d", r.nextSeq, s.nextSeq)
	}
	if r.schedule(cube.Pos{1, 2, 3}, 10) {
		t.Fatalf("imported visit not registered for coalescing")
	}
	for _, want := range out {
		v, ok := r.popDue(100)
		if !ok || [3]int(v.pos) != want.Pos || v.tick != want.Tick {
			t.Fatalf("pop: got %+v want %+v", v, want)
		}
	}
}

func TestSnapshotResumesIdentically(t *testing.T) {
	cfg := testConfig()
	a := newTestWorld(t, cfg)
	stepN(a, 1, placeLiquid("LAVA", surface(0, 0)))
	stepN(a, 70, placeLiquid("WATER", surface(6, 0)))
	last := a.CurrentTick() - 1
	snap := a.ExportSnapshot(last)

	// Round trip through the file format as the server would.
	path := t.TempDir() + "/" + snapshot.FileName(last)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	b := newTestWorld(t, WorldConfig{Seed: 999})
	if err := b.ImportSnapshot(loaded); err != nil {
		t.Fatalf("import: %v", err)
	}
	if b.CurrentTick() != a.CurrentTick() {
		t.Fatalf("tick: got %d want %d", b.CurrentTick(), a.CurrentTick())
	}
	for i := 0; i < 120; i++ {
		ta, da := a.StepOnce(nil)
		tb, db := b.StepOnce(nil)
		if ta != tb || da != db {
			t.Fatalf("diverged at step %d: tick %d/%d", i, ta, tb)
		}
	}
}

func TestSnapshotCarriesQueuedEdits(t *testing.T) {
	a := newTestWorld(t, testConfig())
	stepN(a, 3)
	// An edit accepted by the loop between ticks.
	a.queued = append(a.queued, placeLiquid("WATER", surface(1, 1)))
	snap := a.ExportSnapshot(a.CurrentTick() - 1)
	if len(snap.Queued) != 1 || snap.Queued[0].Liquid != "WATER" || snap.Queued[0].Actor != "tester" {
		t.Fatalf("queued edits not exported: %+v", snap.Queued)
	}

	b := newTestWorld(t, testConfig())
	if err := b.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	da := a.stepQueued()
	db := b.stepQueued()
	if da != db {
		t.Fatalf("resumed world diverged on the queued edit")
	}
	if c := b.Block(surface(1, 1)); c.Kind != fluid.KindWater || c.Decay != 0 {
		t.Fatalf("queued edit lost on resume: %+v", c)
	}
	if len(b.queued) != 0 {
		t.Fatalf("queued edits not consumed: %d", len(b.queued))
	}
}

func TestImportSnapshotRejectsForeignPalette(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.StepOnce(nil)
	snap := w.ExportSnapshot(0)
	snap.PaletteDigest = "other"
	if err := w.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected palette mismatch error")
	}
}

type observed struct {
	voxels []observerproto.ChunkVoxelsMsg
	evicts []observerproto.ChunkEvictMsg
	ticks  []observerproto.TickMsg
}

func drain(t *testing.T, ch chan []byte) observed {
	t.Helper()
	var o observed
	for {
		select {
		case b := <-ch:
			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(b, &head); err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch head.Type {
			case "CHUNK_VOXELS":
				var m observerproto.ChunkVoxelsMsg
				_ = json.Unmarshal(b, &m)
				o.voxels = append(o.voxels, m)
			case "CHUNK_EVICT":
				var m observerproto.ChunkEvictMsg
				_ = json.Unmarshal(b, &m)
				o.evicts = append(o.evicts, m)
			case "TICK":
				var m observerproto.TickMsg
				_ = json.Unmarshal(b, &m)
				o.ticks = append(o.ticks, m)
			default:
				t.Fatalf("unexpected message type %q", head.Type)
			}
		default:
			return o
		}
	}
}

func TestObserverStream(t *testing.T) {
	w := newTestWorld(t, testConfig())
	out := make(chan []byte, 256)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "s1", Out: out, ChunkRadius: 1})

	_, d0 := w.StepOnce(nil)
	o := drain(t, out)
	if len(o.voxels) != observerMaxFullChunksPerTick || len(o.ticks) != 1 {
		t.Fatalf("first tick: %d chunks %d ticks", len(o.voxels), len(o.ticks))
	}
	if o.ticks[0].Digest != d0 || o.ticks[0].Tick != 0 {
		t.Fatalf("tick msg: %+v", o.ticks[0])
	}
	if o.voxels[0].CX != 0 || o.voxels[0].CZ != 0 {
		t.Fatalf("centre chunk should come first: %d,%d", o.voxels[0].CX, o.voxels[0].CZ)
	}
	blocks, _, err := encoding.DecodeCells(o.voxels[0].Data, store.ChunkSize*store.ChunkSize*o.voxels[0].Height)
	if err != nil {
		t.Fatalf("decode chunk: %v", err)
	}
	if blocks[0] != w.gen.Bedrock {
		t.Fatalf("chunk floor: got %d want bedrock", blocks[0])
	}
	if len(w.chunks.Chunks) != 0 {
		t.Fatalf("observing loaded %d chunks", len(w.chunks.Chunks))
	}

	w.StepOnce(nil)
	if o = drain(t, out); len(o.voxels) != 1 {
		t.Fatalf("second tick: got %d chunks want the remaining 1", len(o.voxels))
	}

	w.StepOnce([]Edit{placeLiquid("WATER", surface(1, 1))})
	o = drain(t, out)
	if len(o.ticks) != 1 || len(o.ticks[0].Changes) != 1 {
		t.Fatalf("expected one change: %+v", o.ticks)
	}
	ch := o.ticks[0].Changes[0]
	if ch.Pos != [3]int(surface(1, 1)) || ch.Block != w.blocks.Water || ch.Decay != 0 {
		t.Fatalf("unexpected change %+v", ch)
	}
	if len(o.ticks[0].Audits) != 1 || o.ticks[0].Audits[0].Actor != "tester" {
		t.Fatalf("unexpected audits %+v", o.ticks[0].Audits)
	}

	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "s1", Center: [2]int{2, 0}, ChunkRadius: 1})
	w.StepOnce(nil)
	o = drain(t, out)
	if len(o.evicts) != 6 {
		t.Fatalf("evictions: got %d want 6", len(o.evicts))
	}

	w.handleObserverLeave("s1")
	if _, open := <-out; open {
		t.Fatalf("out channel should be closed after leave")
	}
}

func TestObserverGetsSilentChangesOnResync(t *testing.T) {
	w := newTestWorld(t, testConfig())
	out := make(chan []byte, 256)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "s1", Out: out, ChunkRadius: 1})
	stepN(w, 2)
	drain(t, out)

	w.SetBlock(surface(2, 2), w.Block(cube.Pos{0, 0, 0}), false, false)
	for w.CurrentTick()%uint64(w.cfg.ChunkResyncEveryTicks) != 0 {
		w.StepOnce(nil)
		if o := drain(t, out); len(o.voxels) != 0 || len(o.ticks[0].Changes) != 0 {
			t.Fatalf("silent change leaked before resync at tick %d", w.CurrentTick()-1)
		}
	}
	w.StepOnce(nil)
	o := drain(t, out)
	if len(o.voxels) != 1 || o.voxels[0].CX != 0 || o.voxels[0].CZ != 0 {
		t.Fatalf("resync: got %d chunks", len(o.voxels))
	}
	if len(w.silent) != 0 {
		t.Fatalf("silent set not cleared")
	}
}

func TestRunServesEditsAndProbes(t *testing.T) {
	cfg := testConfig()
	cfg.TickRateHz = 200
	w := newTestWorld(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := w.SubmitEdit(ctx, Edit{Op: "NOPE"}); err == nil {
		t.Fatalf("expected error for unknown op")
	}
	if err := w.SubmitEdit(ctx, placeLiquid("WATER", surface(2, 2))); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var p FlowProbe
	for time.Now().Before(deadline) {
		pctx, pcancel := context.WithTimeout(ctx, time.Second)
		var err error
		p, err = w.ProbeFlow(pctx, surface(2, 2), mgl64.Vec3{0, 1, 0})
		pcancel()
		if err != nil {
			t.Fatalf("probe: %v", err)
		}
		if p.Liquid != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p.Liquid != "water" || p.Decay != 0 || p.Falling || p.Block != "WATER" {
		t.Fatalf("unexpected probe %+v", p)
	}
	if math.Abs(p.Height-1.0/9) > 1e-12 {
		t.Fatalf("height: got %v", p.Height)
	}
	if p.Pushed != (mgl64.Vec3{0, 1, 0}).Add(p.Vector) {
		t.Fatalf("pushed velocity %v does not include the flow %v", p.Pushed, p.Vector)
	}

	snap, err := w.RequestSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Header.WorldID != "test" || len(snap.Chunks) == 0 {
		t.Fatalf("unexpected snapshot header %+v with %d chunks", snap.Header, len(snap.Chunks))
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run: got %v want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestRequestSnapshotBeforeFirstTick(t *testing.T) {
	w := newTestWorld(t, testConfig())
	if r := w.snapshotNow(); !errors.Is(r.err, ErrNoTick) {
		t.Fatalf("got %v want ErrNoTick", r.err)
	}
}

func TestReadsDoNotChangeTheDigest(t *testing.T) {
	a := newTestWorld(t, testConfig())
	b := newTestWorld(t, testConfig())
	stepN(a, 1, placeLiquid("WATER", surface(0, 0)))
	stepN(b, 1, placeLiquid("WATER", surface(0, 0)))

	for x := -40; x <= 40; x += 8 {
		b.probeFlow(surface(x, x), mgl64.Vec3{})
	}
	if len(b.chunks.Chunks) <= len(a.chunks.Chunks) {
		t.Fatalf("probes should have loaded extra chunks")
	}
	for i := 0; i < 20; i++ {
		_, da := a.StepOnce(nil)
		_, db := b.StepOnce(nil)
		if da != db {
			t.Fatalf("digest diverged at step %d after probing", i)
		}
	}
}
