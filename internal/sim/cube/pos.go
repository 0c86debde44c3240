package cube

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Pos is an integer block position in a world. The zero value is the origin.
type Pos [3]int

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Add returns the sum of two positions.
func (p Pos) Add(o Pos) Pos {
	return Pos{p[0] + o[0], p[1] + o[1], p[2] + o[2]}
}

// Side returns the position directly next to p on the face passed.
func (p Pos) Side(f Face) Pos {
	return p.Add(f.Offset())
}

// Vec3 returns the position as a vector pointing at the block's minimum corner.
func (p Pos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// Vec3Centre returns the centre of the block at p.
func (p Pos) Vec3Centre() mgl64.Vec3 {
	return p.Vec3().Add(mgl64.Vec3{0.5, 0.5, 0.5})
}

// Neighbours calls f for each of the six face-adjacent positions, in Face order.
func (p Pos) Neighbours(f func(neighbour Pos)) {
	for _, face := range Faces() {
		f(p.Side(face))
	}
}

// Manhattan returns the block distance between two positions.
func Manhattan(a, b Pos) int {
	return abs(a[0]-b[0]) + abs(a[1]-b[1]) + abs(a[2]-b[2])
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
