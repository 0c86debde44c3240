package fluid

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/sim/cube"
)

const (
	idAir uint16 = iota
	idStone
	idWater
	idLava
	idObsidian
	idCobble
	idTallGrass
	idBedrock
)

var testBlocks = Blocks{
	Air:         idAir,
	Water:       idWater,
	Lava:        idLava,
	Obsidian:    idObsidian,
	Cobblestone: idCobble,
	Stone:       idStone,
}

type setCall struct {
	pos    cube.Pos
	cell   Cell
	notify bool
	visual bool
}

type scheduleCall struct {
	pos   cube.Pos
	delay int
}

// fakeWorld is a sparse world where every unset position is air.
type fakeWorld struct {
	cells map[cube.Pos]Cell

	// flowableLava makes flowing lava replaceable, for exercising the mix path of flowInto.
	flowableLava bool

	sets      []setCall
	scheduled []scheduleCall
	broken    []cube.Pos
	sounds    []Sound
	particles []mgl64.Vec3
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{cells: map[cube.Pos]Cell{}}
}

func (w *fakeWorld) put(pos cube.Pos, c Cell) { w.cells[pos] = c }

func (w *fakeWorld) water(pos cube.Pos, decay int) {
	w.put(pos, Cell{ID: idWater, Kind: KindWater, Decay: decay})
}

func (w *fakeWorld) lava(pos cube.Pos, decay int) {
	w.put(pos, Cell{ID: idLava, Kind: KindLava, Decay: decay})
}

func (w *fakeWorld) stone(pos cube.Pos) { w.put(pos, Cell{ID: idStone}) }

// floor fills y with stone for x,z in [-r, r].
func (w *fakeWorld) floor(y, r int) {
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			w.stone(cube.Pos{x, y, z})
		}
	}
}

func (w *fakeWorld) Block(pos cube.Pos) Cell {
	if c, ok := w.cells[pos]; ok {
		return c
	}
	return Cell{ID: idAir}
}

func (w *fakeWorld) SetBlock(pos cube.Pos, c Cell, notify, visual bool) {
	w.sets = append(w.sets, setCall{pos: pos, cell: c, notify: notify, visual: visual})
	if c.ID == idAir {
		delete(w.cells, pos)
		return
	}
	w.cells[pos] = c
}

func (w *fakeWorld) ScheduleUpdate(pos cube.Pos, delay int) {
	w.scheduled = append(w.scheduled, scheduleCall{pos: pos, delay: delay})
}

func (w *fakeWorld) FlowableInto(c Cell) bool {
	switch c.ID {
	case idAir, idTallGrass:
		return true
	case idLava:
		return w.flowableLava && c.Decay != 0
	}
	return false
}

func (w *fakeWorld) Solid(c Cell) bool {
	switch c.ID {
	case idStone, idObsidian, idCobble, idBedrock:
		return true
	}
	return false
}

func (w *fakeWorld) Hardness(c Cell) float64 {
	switch c.ID {
	case idBedrock:
		return -1
	case idWater, idLava:
		return 100
	}
	return 0.5
}

func (w *fakeWorld) BreakBlock(pos cube.Pos) { w.broken = append(w.broken, pos) }

func (w *fakeWorld) PlaySound(_ mgl64.Vec3, s Sound) { w.sounds = append(w.sounds, s) }

func (w *fakeWorld) AddParticle(pos mgl64.Vec3, _ Particle) {
	w.particles = append(w.particles, pos)
}

func (w *fakeWorld) scheduledAt(pos cube.Pos) (int, bool) {
	for _, s := range w.scheduled {
		if s.pos == pos {
			return s.delay, true
		}
	}
	return 0, false
}

// seqRand replays a fixed sequence of draws.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[r.i%len(r.vals)] % n
	r.i++
	return v
}
