package main

import (
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	waterDeep    = colorful.Color{R: 0.05, G: 0.20, B: 0.75}
	waterShallow = colorful.Color{R: 0.55, G: 0.80, B: 1.00}
	lavaHot      = colorful.Color{R: 1.00, G: 0.85, B: 0.20}
	lavaCool     = colorful.Color{R: 0.60, G: 0.10, B: 0.05}
)

// decayColor shades a liquid by strength: sources use the first colour, decay 7 the second.
// Falling liquid is drawn at full strength.
func decayColor(from, to colorful.Color, meta uint8) tcell.Color {
	d := int(meta)
	if d&0x08 != 0 {
		d = 0
	}
	c := from.BlendLab(to, float64(d)/7).Clamped()
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

type styler struct {
	names []string
}

// cell returns the glyph and style for one block of the slice.
func (s styler) cell(block uint16, meta uint8) (rune, tcell.Style) {
	name := ""
	if int(block) < len(s.names) {
		name = s.names[block]
	}
	base := tcell.StyleDefault
	switch name {
	case "AIR":
		return ' ', base
	case "WATER":
		glyph := '~'
		if meta&0x08 != 0 {
			glyph = '|'
		}
		return glyph, base.Foreground(tcell.ColorWhite).Background(decayColor(waterDeep, waterShallow, meta))
	case "LAVA":
		glyph := '~'
		if meta&0x08 != 0 {
			glyph = '|'
		}
		return glyph, base.Foreground(tcell.ColorBlack).Background(decayColor(lavaHot, lavaCool, meta))
	case "OBSIDIAN":
		return '#', base.Foreground(tcell.ColorPurple)
	case "COBBLESTONE":
		return '%', base.Foreground(tcell.ColorGray)
	case "STONE":
		return '#', base.Foreground(tcell.ColorSilver)
	case "GRASS":
		return '"', base.Foreground(tcell.ColorGreen)
	case "TALL_GRASS":
		return ',', base.Foreground(tcell.ColorLime)
	case "DIRT":
		return '.', base.Foreground(tcell.ColorOlive)
	case "BEDROCK":
		return '@', base.Foreground(tcell.ColorDarkGray)
	case "GLASS":
		return '+', base.Foreground(tcell.ColorAqua)
	}
	return '?', base.Foreground(tcell.ColorRed)
}
