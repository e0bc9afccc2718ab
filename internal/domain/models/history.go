package models

// SymbolHistory accumulates per-instrument filter outcomes over the process
// lifetime. Entries are created on first observation and never deleted.
type SymbolHistory struct {
	Successes              int
	Failures               int
	EmptyTimeframeEvents   int
	BlockedCyclesRemaining int
}

// FailRate returns failures / (successes + failures), or 0 while the
// instrument has no recorded cycles yet.
func (h *SymbolHistory) FailRate() float64 {
	total := h.Successes + h.Failures
	if total < 1 {
		return 0
	}
	return float64(h.Failures) / float64(total)
}

// Blocked reports whether an integrity block is still active.
func (h *SymbolHistory) Blocked() bool {
	return h.BlockedCyclesRemaining > 0
}
