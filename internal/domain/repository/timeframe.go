package repository

import "time"

// Timeframe represents a candle resolution bucket.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// CoreTimeframes are the resolutions the acquisition engine fetches every
// rotation and the integrity layer requires stored history for.
var CoreTimeframes = []Timeframe{TF15m, TF1h, TF4h}

// MaturitySampleOrder is the fallback order used when estimating instrument
// age from an API sample.
var MaturitySampleOrder = []Timeframe{TF1h, TF4h, TF1d}

// Duration returns the wall-clock span of one candle. A candle is closed once
// this much time has elapsed since its open.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	return tf.Duration() > 0
}

// NormalizeTimeframe converts a raw string to a valid timeframe (or 1h).
func NormalizeTimeframe(s string) Timeframe {
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return TF1h
}
