package gen

// FloorDiv divides rounding towards negative infinity. b must be positive.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod returns a modulo b in [0, b). b must be positive.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 is a stateless per-column hash used for worldgen rolls.
func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

// Layer is the block kind a flat column holds at one height.
type Layer int

const (
	LayerAir Layer = iota
	LayerBedrock
	LayerStone
	LayerDirt
	LayerGrass
	LayerTallGrass
)

// Flat describes the flat test floor: bedrock at y=0, stone up to FloorY-3, three layers of dirt
// and a grass surface at FloorY. Tall grass is sprinkled on top of the surface.
type Flat struct {
	Seed   int64
	FloorY int
	// TallGrassPermille is the per-column chance of tall grass at FloorY+1.
	TallGrassPermille int
}

// LayerAt returns the layer generated at (x, y, z).
func (f Flat) LayerAt(x, y, z int) Layer {
	switch {
	case y < 0:
		return LayerBedrock
	case y == 0:
		return LayerBedrock
	case f.FloorY <= 0:
		return LayerAir
	case y == f.FloorY:
		return LayerGrass
	case y < f.FloorY-3:
		return LayerStone
	case y < f.FloorY:
		return LayerDirt
	case y == f.FloorY+1 && f.tallGrass(x, z):
		return LayerTallGrass
	}
	return LayerAir
}

func (f Flat) tallGrass(x, z int) bool {
	p := ClampPermille(f.TallGrassPermille)
	if p == 0 {
		return false
	}
	return Hash2(f.Seed+999, x, z)%1000 < uint64(p)
}

func ClampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}
