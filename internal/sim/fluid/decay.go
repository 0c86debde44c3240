package fluid

// RawDecay returns the stored decay of c, falling bit included, or -1 when c does not hold a liquid
// of kind k.
func (k Kind) RawDecay(c Cell) int {
	if c.Kind != k || k == KindNone {
		return -1
	}
	return c.Decay
}

// EffectiveDecay is RawDecay with a falling stream collapsed to full strength, for magnitude
// comparisons.
func (k Kind) EffectiveDecay(c Cell) int {
	d := k.RawDecay(c)
	if d >= maxDecay {
		return 0
	}
	return d
}

// Falling reports whether a raw decay carries the falling marker.
func Falling(decay int) bool { return decay >= 0 && decay&fallingBit != 0 }

// Magnitude strips the falling marker from a raw decay.
func Magnitude(decay int) int { return decay & magnitudeMask }

// source reports whether c is a full source of kind k.
func (k Kind) source(c Cell) bool { return k.RawDecay(c) == 0 }
