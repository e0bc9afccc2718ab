package models

import "time"

// FilterLayer identifies the pipeline stage that decided an instrument's fate.
type FilterLayer string

const (
	LayerLiquidity FilterLayer = "liquidity"
	LayerMaturity  FilterLayer = "maturity"
	LayerActivity  FilterLayer = "activity"
	LayerIntegrity FilterLayer = "integrity"
	LayerNone      FilterLayer = "none"
)

// FilterDecision is the per-instrument outcome of one filter run.
type FilterDecision struct {
	Instrument   string
	Approved     bool
	Layer        FilterLayer
	Reason       string
	Volume24h    float64
	AgeDays      int
	TrustedAge   bool
	Activity15m  float64
	Activity1h   float64
	FailRate     float64
}

// FilterOutcome is the result of a full filter run.
type FilterOutcome struct {
	Approved   []string
	Report     []FilterDecision
	ComputedAt time.Time
	FromCache  bool
	Err        error
}

// MaturityInfo is the cached instrument-age estimate. Trustworthy is true when
// the age came from the earliest stored candle; an API sample only bounds the
// age from below, since the exchange returns the most recent N candles.
type MaturityInfo struct {
	AgeDays     int
	Trustworthy bool
}
