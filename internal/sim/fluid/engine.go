// Package fluid implements liquid spread, retraction and hardening on a block world.
//
// The engine holds no per-position state. All of it lives in the World, and every visit reads what
// it needs from there, so visits may be repeated or arrive after the liquid was removed.
package fluid

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/sim/cube"
)

// lavaDampingOdds is the 1-in-N chance that lava applies a decay change it computed.
const lavaDampingOdds = 5

// Engine runs liquid updates against a World. It must only be used from the goroutine that owns
// the world.
type Engine struct {
	w      World
	blocks Blocks
	rng    Rand
}

// NewEngine returns an engine writing the given blocks into w. rng is shared by lava damping and
// effect jitter; pass a seeded source for deterministic runs.
func NewEngine(w World, blocks Blocks, rng Rand) *Engine {
	if w == nil || rng == nil {
		panic("fluid: nil world or rand")
	}
	return &Engine{w: w, blocks: blocks, rng: rng}
}

// Update visits pos for the reason passed. Positions that do not hold a liquid are ignored.
func (e *Engine) Update(pos cube.Pos, t UpdateType) {
	c := e.w.Block(pos)
	if c.Kind == KindNone {
		return
	}
	switch t {
	case UpdateNormal:
		e.CheckForHarden(pos)
		e.schedule(pos, c.Kind)
	case UpdateScheduled:
		e.Tick(pos, c.Kind)
	}
}

func (e *Engine) schedule(pos cube.Pos, k Kind) {
	if rate := k.TickRate(); rate > 0 {
		e.w.ScheduleUpdate(pos, rate)
	}
}

// Tick runs the scheduled transition of the liquid of kind k at pos: recompute its own decay from
// its neighbours, then fall down or spread sideways, then check for hardening.
//
// If pos no longer holds liquid of kind k, Tick returns without running the downward or hardening
// checks. Update dispatches on the cell's own kind, so only a direct call with a mismatched kind
// reaches that case.
func (e *Engine) Tick(pos cube.Pos, k Kind) {
	k.mustLiquid()

	decay := k.RawDecay(e.w.Block(pos))
	if decay < 0 {
		return
	}

	if decay > 0 {
		if next := e.nextDecay(pos, k, decay); next != decay {
			decay = next
			if decay < 0 {
				e.w.SetBlock(pos, e.blocks.solid(e.blocks.Air), true, true)
				return
			}
			e.w.SetBlock(pos, e.blocks.liquid(k, decay), true, true)
			e.schedule(pos, k)
		}
	}

	below := pos.Side(cube.FaceDown)
	bc := e.w.Block(below)
	switch {
	case k == KindLava && bc.Kind == KindWater:
		e.w.SetBlock(below, e.blocks.solid(e.blocks.Stone), true, true)
	case e.w.FlowableInto(bc) || (bc.Kind.Liquid() && Magnitude(bc.Decay) != 0):
		e.w.SetBlock(below, e.blocks.liquid(k, decay|fallingBit), false, true)
		e.schedule(below, k)
	case decay == 0 || !e.w.FlowableInto(bc):
		e.spread(pos, k, decay)
	}

	e.CheckForHarden(pos)
}

// nextDecay computes the decay the non-source liquid at pos should have given its surroundings. A
// negative result means the liquid can no longer exist there.
func (e *Engine) nextDecay(pos cube.Pos, k Kind, decay int) int {
	smallest, sources := -100, 0
	for _, f := range flowFaces {
		smallest = smallestDecay(k.RawDecay(e.w.Block(pos.Side(f))), smallest, &sources)
	}

	next := smallest + k.Multiplier()
	if next >= maxDecay || smallest < 0 {
		next = -1
	}

	if top := k.RawDecay(e.w.Block(pos.Side(cube.FaceUp))); top >= 0 {
		if top >= maxDecay {
			next = top
		} else {
			next = top | fallingBit
		}
	}

	if k == KindWater && sources >= 2 {
		bc := e.w.Block(pos.Side(cube.FaceDown))
		if e.w.Solid(bc) || k.source(bc) {
			next = 0
		}
	}

	if k == KindLava && decay < maxDecay && next > 1 && next < maxDecay && e.rng.IntN(lavaDampingOdds) != 0 {
		next = decay
	}
	return next
}

// smallestDecay folds one neighbour decay into the running minimum. Foreign blocks (-1) are skipped
// without resetting the minimum, sources are counted and falling neighbours count as full strength.
func smallestDecay(neighbour, current int, sources *int) int {
	switch {
	case neighbour < 0:
		return current
	case neighbour == 0:
		*sources++
	case neighbour >= maxDecay:
		neighbour = 0
	}
	if current >= 0 && neighbour >= current {
		return current
	}
	return neighbour
}

// spread pushes liquid sideways into every optimal direction around pos.
func (e *Engine) spread(pos cube.Pos, k Kind, decay int) {
	next := decay + k.Multiplier()
	if decay >= maxDecay {
		// A stream that lands restarts at the strongest flowing level.
		next = 1
	}
	if next >= maxDecay {
		return
	}
	optimal, _ := e.OptimalDirections(pos, k)
	for i, f := range flowFaces {
		if optimal[i] {
			e.flowInto(pos.Side(f), k, next)
		}
	}
}

// flowInto places liquid of kind k with the decay passed at pos, destroying whatever fragile block
// was there.
func (e *Engine) flowInto(pos cube.Pos, k Kind, decay int) {
	c := e.w.Block(pos)
	if !e.w.FlowableInto(c) {
		return
	}
	switch {
	case c.Kind == KindLava:
		e.mixEffects(pos)
	case c.Kind == KindNone && c.ID != e.blocks.Air && e.w.Hardness(c) >= 0:
		e.w.BreakBlock(pos)
	}
	e.w.SetBlock(pos, e.blocks.liquid(k, decay), true, true)
	e.schedule(pos, k)
}

// CheckForHarden turns lava at pos into stone when water touches any of its faces. Sources become
// obsidian, weak flows cobblestone; weaker lava stays but still fizzes.
func (e *Engine) CheckForHarden(pos cube.Pos) {
	c := e.w.Block(pos)
	if c.Kind != KindLava {
		return
	}
	colliding := false
	for _, f := range cube.Faces() {
		if e.w.Block(pos.Side(f)).Kind == KindWater {
			colliding = true
			break
		}
	}
	if !colliding {
		return
	}

	switch {
	case c.Decay == 0:
		e.w.SetBlock(pos, e.blocks.solid(e.blocks.Obsidian), true, true)
	case c.Decay <= 4:
		e.w.SetBlock(pos, e.blocks.solid(e.blocks.Cobblestone), true, true)
	}
	e.mixEffects(pos)
}

// mixEffects plays the fizz of lava meeting water and puffs smoke above pos.
func (e *Engine) mixEffects(pos cube.Pos) {
	pitch := 2.5 + float64(e.rng.IntN(1001))/1000*0.8
	e.w.PlaySound(pos.Vec3Centre(), FizzSound{Pitch: pitch})

	base := pos.Vec3()
	for i := 0; i < smokeParticles; i++ {
		off := mgl64.Vec3{float64(e.rng.IntN(81)) / 100, 0.5, float64(e.rng.IntN(81)) / 100}
		e.w.AddParticle(base.Add(off), SmokeParticle{})
	}
}
