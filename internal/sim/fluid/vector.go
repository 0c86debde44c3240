package fluid

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelflow.ai/internal/sim/cube"
)

// fallingPull is the downward bias added to the flow of a falling stream pressed against a wall.
const fallingPull = 6

// FlowVector returns the normalized direction liquid at pos pushes bodies in. It is the zero vector
// for still liquid and for anything that is not a liquid.
func (e *Engine) FlowVector(pos cube.Pos) mgl64.Vec3 {
	self := e.w.Block(pos)
	k := self.Kind
	if k == KindNone {
		return mgl64.Vec3{}
	}
	decay := k.EffectiveDecay(self)

	var v mgl64.Vec3
	for _, f := range flowFaces {
		side := pos.Side(f)
		sc := e.w.Block(side)
		off := f.Offset().Vec3()

		sideDecay := k.EffectiveDecay(sc)
		if sideDecay < 0 {
			if !e.w.FlowableInto(sc) {
				continue
			}
			// An open gap next to us with our liquid underneath it pulls towards the drop.
			below := k.EffectiveDecay(e.w.Block(side.Side(cube.FaceDown)))
			if below >= 0 {
				v = v.Add(off.Mul(float64(below - (decay - maxDecay))))
			}
			continue
		}
		v = v.Add(off.Mul(float64(sideDecay - decay)))
	}

	if self.Decay >= maxDecay && e.fallingAgainstWall(pos) {
		v = normalize(v).Add(mgl64.Vec3{0, -fallingPull, 0})
	}
	return normalize(v)
}

// fallingAgainstWall reports whether any side of pos, at its own height or one above, blocks flow.
func (e *Engine) fallingAgainstWall(pos cube.Pos) bool {
	up := pos.Side(cube.FaceUp)
	for _, base := range [2]cube.Pos{pos, up} {
		for _, f := range [4]cube.Face{cube.FaceNorth, cube.FaceSouth, cube.FaceWest, cube.FaceEast} {
			if !e.w.FlowableInto(e.w.Block(base.Side(f))) {
				return true
			}
		}
	}
	return false
}

// AddVelocity returns vel with the flow at pos added to it.
func (e *Engine) AddVelocity(pos cube.Pos, vel mgl64.Vec3) mgl64.Vec3 {
	return vel.Add(e.FlowVector(pos))
}

// HeightPercent returns the fraction of the block at pos above the liquid surface. Sources and
// falling streams sit highest at 1/9.
func (e *Engine) HeightPercent(pos cube.Pos) float64 {
	c := e.w.Block(pos)
	if c.Kind == KindNone {
		return 0
	}
	d := c.Decay
	if d >= maxDecay {
		d = 0
	}
	return float64(d+1) / 9
}

// normalize is mgl64's Normalize without the division by zero.
func normalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l == 0 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}
