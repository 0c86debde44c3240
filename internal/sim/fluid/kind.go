package fluid

import "fmt"

// Kind identifies a liquid. Water is the light liquid that spreads quickly; lava is the heavy one
// that hardens when it touches water.
type Kind uint8

const (
	KindNone Kind = iota
	KindWater
	KindLava
)

const (
	// fallingBit marks a liquid cell that is part of a descending stream.
	fallingBit = 0x08
	// magnitudeMask extracts the 0-7 strength from a raw decay.
	magnitudeMask = 0x07
	// maxDecay is the first decay that can no longer exist as flowing liquid.
	maxDecay = 8
)

type kindProps struct {
	name       string
	tickRate   int
	multiplier int
	hardness   float64
}

var kinds = [...]kindProps{
	KindNone:  {name: "none"},
	KindWater: {name: "water", tickRate: 5, multiplier: 1, hardness: 100},
	KindLava:  {name: "lava", tickRate: 30, multiplier: 2, hardness: 100},
}

// ParseKind maps a catalog liquid name to a Kind. The empty string is KindNone.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "":
		return KindNone, nil
	case "WATER", "water":
		return KindWater, nil
	case "LAVA", "lava":
		return KindLava, nil
	}
	return KindNone, fmt.Errorf("unknown liquid kind %q", s)
}

func (k Kind) props() kindProps {
	if int(k) >= len(kinds) {
		panic(fmt.Sprintf("fluid: unknown liquid kind %d", k))
	}
	return kinds[k]
}

// Liquid reports whether k is an actual liquid.
func (k Kind) Liquid() bool { return k != KindNone && k.props().tickRate > 0 }

// TickRate is the delay in ticks between scheduled visits of a liquid of this kind. It is 0 for
// KindNone.
func (k Kind) TickRate() int { return k.props().tickRate }

// Multiplier is the decay added per horizontal hop.
func (k Kind) Multiplier() int { return k.props().multiplier }

// Hardness is the mining hardness of the liquid block itself.
func (k Kind) Hardness() float64 { return k.props().hardness }

func (k Kind) String() string { return k.props().name }

// mustLiquid panics when k is not a liquid. Reaching the transition code with such a kind means the
// catalog or the caller is broken.
func (k Kind) mustLiquid() {
	if !k.Liquid() {
		panic(fmt.Sprintf("fluid: transition invoked for non-liquid kind %d", k))
	}
}
