package models

import "testing"

func TestFailRate(t *testing.T) {
	cases := []struct {
		name      string
		successes int
		failures  int
		want      float64
	}{
		{"no record", 0, 0, 0},
		{"all good", 10, 0, 0},
		{"all bad", 0, 4, 1},
		{"mixed", 7, 3, 0.3},
	}
	for _, tc := range cases {
		h := SymbolHistory{Successes: tc.successes, Failures: tc.failures}
		if got := h.FailRate(); got != tc.want {
			t.Errorf("%s: FailRate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBlocked(t *testing.T) {
	h := SymbolHistory{}
	if h.Blocked() {
		t.Fatalf("fresh history blocked")
	}
	h.BlockedCyclesRemaining = 1
	if !h.Blocked() {
		t.Fatalf("history with remaining cycles not blocked")
	}
	h.BlockedCyclesRemaining = 0
	if h.Blocked() {
		t.Fatalf("expired block still active")
	}
}

func TestIsIndicatorSlot(t *testing.T) {
	for _, name := range IndicatorSlots {
		if !IsIndicatorSlot(name) {
			t.Errorf("%s not recognized as a slot", name)
		}
	}
	if IsIndicatorSlot("astrology") {
		t.Errorf("unknown name accepted as a slot")
	}
	if len(IndicatorSlots) != NumIndicatorSlots {
		t.Errorf("slot list has %d entries, want %d", len(IndicatorSlots), NumIndicatorSlots)
	}
}
