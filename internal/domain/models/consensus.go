package models

import "time"

// Direction is the side of a consensus signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNone  Direction = ""
)

// Verdict is one indicator's opinion for an instrument. An indicator may in
// principle flag both sides in the same cycle; the aggregator treats that as
// an anomaly but still counts both.
type Verdict struct {
	Long  bool
	Short bool
}

// IndicatorSlots is the fixed set of indicator names the aggregator expects.
var IndicatorSlots = []string{
	"rsi", "macd", "ema_cross", "bollinger",
	"adx", "stochastic", "supertrend", "volume_profile",
}

// NumIndicatorSlots is the M in the N-of-M consensus rule.
const NumIndicatorSlots = 8

// IsIndicatorSlot reports whether name is one of the fixed indicator slots.
func IsIndicatorSlot(name string) bool {
	for _, s := range IndicatorSlots {
		if s == name {
			return true
		}
	}
	return false
}

// ConsensusResult is the aggregated signal for one instrument in one cycle.
type ConsensusResult struct {
	Instrument   string
	Valid        bool
	Direction    Direction
	LongCount    int
	ShortCount   int
	NeutralCount int
	Reason       string
	EvaluatedAt  time.Time
}
