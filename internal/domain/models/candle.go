package models

import "time"

// Candle represents one OHLCV record for an instrument/timeframe pair.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Seq      int64
	Closed   bool
}

// CandleSeries is an open-time ordered slice of candles for one timeframe.
type CandleSeries []Candle

// LastClosed returns the most recent closed candle, if any.
func (s CandleSeries) LastClosed() (Candle, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Closed {
			return s[i], true
		}
	}
	return Candle{}, false
}

// NonZeroVolumeFraction returns the fraction of candles with volume > 0.
func (s CandleSeries) NonZeroVolumeFraction() float64 {
	if len(s) == 0 {
		return 0
	}
	n := 0
	for _, c := range s {
		if c.Volume > 0 {
			n++
		}
	}
	return float64(n) / float64(len(s))
}

// Ticker is the 24h market snapshot of one instrument as reported by the
// exchange. QuoteVolume24h is the turnover in quote currency, which is the
// figure the liquidity layer ranks on.
type Ticker struct {
	Symbol         string
	LastPrice      float64
	QuoteVolume24h float64
}
