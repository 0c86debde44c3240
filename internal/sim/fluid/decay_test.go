package fluid

import "testing"

func TestDecayViewsKeepFallingBitApart(t *testing.T) {
	c := Cell{ID: idWater, Kind: KindWater, Decay: 8 | 4}
	if got := KindWater.EffectiveDecay(c); got != 0 {
		t.Fatalf("effective decay of 12: got %d want 0", got)
	}
	if got := KindWater.RawDecay(c); got != 12 {
		t.Fatalf("raw decay of 12: got %d want 12", got)
	}
	if !Falling(c.Decay) || Magnitude(c.Decay) != 4 {
		t.Fatalf("falling/magnitude of 12: falling=%v magnitude=%d", Falling(c.Decay), Magnitude(c.Decay))
	}
}

func TestDecayForeignCellIsSentinel(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		cell Cell
	}{
		{"air", KindWater, Cell{ID: idAir}},
		{"stone", KindLava, Cell{ID: idStone}},
		{"other liquid", KindWater, Cell{ID: idLava, Kind: KindLava, Decay: 0}},
		{"none kind", KindNone, Cell{ID: idAir}},
	}
	for _, tc := range cases {
		if got := tc.kind.RawDecay(tc.cell); got != -1 {
			t.Fatalf("%s: raw decay got %d want -1", tc.name, got)
		}
		if got := tc.kind.EffectiveDecay(tc.cell); got != -1 {
			t.Fatalf("%s: effective decay got %d want -1", tc.name, got)
		}
	}
}

func TestDecayFlowingValuesPassThrough(t *testing.T) {
	for d := 0; d < 8; d++ {
		c := Cell{ID: idLava, Kind: KindLava, Decay: d}
		if KindLava.RawDecay(c) != d || KindLava.EffectiveDecay(c) != d {
			t.Fatalf("decay %d: raw=%d effective=%d", d, KindLava.RawDecay(c), KindLava.EffectiveDecay(c))
		}
	}
}

func TestKindTable(t *testing.T) {
	if KindWater.TickRate() != 5 || KindLava.TickRate() != 30 || KindNone.TickRate() != 0 {
		t.Fatalf("tick rates: water=%d lava=%d none=%d", KindWater.TickRate(), KindLava.TickRate(), KindNone.TickRate())
	}
	if KindWater.Multiplier() != 1 || KindLava.Multiplier() != 2 {
		t.Fatalf("multipliers: water=%d lava=%d", KindWater.Multiplier(), KindLava.Multiplier())
	}
	if KindNone.Liquid() || !KindWater.Liquid() || !KindLava.Liquid() {
		t.Fatalf("unexpected Liquid() classification")
	}
	for _, s := range []string{"WATER", "LAVA", ""} {
		if _, err := ParseKind(s); err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
	}
	if _, err := ParseKind("MILK"); err == nil {
		t.Fatalf("expected error for unknown liquid")
	}
}

func TestUnknownKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown kind")
		}
	}()
	_ = Kind(9).TickRate()
}
