package usecase

import (
	"sync"

	"PairScan/internal/domain/models"
)

// VerdictRegistry holds the latest per-indicator verdict for each instrument.
// Writers are the verdict intake paths (HTTP provider, kafka consumer),
// readers are the consensus unit; a plain mutex is enough at this rate.
type VerdictRegistry struct {
	mu       sync.RWMutex
	verdicts map[string]map[string]models.Verdict
}

func NewVerdictRegistry() *VerdictRegistry {
	return &VerdictRegistry{verdicts: make(map[string]map[string]models.Verdict)}
}

// Record stores the verdict for a known indicator slot. Unknown indicator
// names are dropped so a misbehaving producer cannot widen the slot set.
func (r *VerdictRegistry) Record(instrument, indicator string, v models.Verdict) bool {
	if !models.IsIndicatorSlot(indicator) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.verdicts[instrument]
	if !ok {
		m = make(map[string]models.Verdict, models.NumIndicatorSlots)
		r.verdicts[instrument] = m
	}
	m[indicator] = v
	return true
}

// RecordAll merges a full verdict map for an instrument.
func (r *VerdictRegistry) RecordAll(instrument string, vs map[string]models.Verdict) {
	for name, v := range vs {
		r.Record(instrument, name, v)
	}
}

// Snapshot returns a copy of the instrument's verdicts, or nil when none
// have been recorded.
func (r *VerdictRegistry) Snapshot(instrument string) map[string]models.Verdict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.verdicts[instrument]
	if !ok {
		return nil
	}
	out := make(map[string]models.Verdict, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Instruments lists instruments with at least one recorded verdict.
func (r *VerdictRegistry) Instruments() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.verdicts))
	for sym := range r.verdicts {
		out = append(out, sym)
	}
	return out
}

// Clear drops the verdicts for an instrument, typically after a consensus
// decision has been published.
func (r *VerdictRegistry) Clear(instrument string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.verdicts, instrument)
}
