package usecase

import (
	"fmt"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/pkg/config"
	applogger "PairScan/pkg/logger"
)

// ConsensusAggregator converts the fixed set of per-indicator verdicts into a
// directional signal using an N-of-M rule. Evaluate is a pure function over
// the verdict map; no network or storage access.
type ConsensusAggregator struct {
	cfg config.ConsensusConfig
	log *applogger.Logger
}

func NewConsensusAggregator(cfg config.ConsensusConfig, log *applogger.Logger) *ConsensusAggregator {
	return &ConsensusAggregator{cfg: cfg, log: log}
}

// Evaluate counts the verdict slots and applies the decision rules in
// priority order. Missing slots count as neutral.
func (a *ConsensusAggregator) Evaluate(verdicts map[string]models.Verdict, instrument string) models.ConsensusResult {
	long, short := 0, 0
	for name, v := range verdicts {
		if v.Long && v.Short {
			// order-independent counting: both sides get the vote, but a
			// two-sided indicator is worth flagging
			a.log.Warn("indicator voted both sides",
				applogger.String("instrument", instrument),
				applogger.String("indicator", name),
			)
		}
		if v.Long {
			long++
		}
		if v.Short {
			short++
		}
	}
	neutral := models.NumIndicatorSlots - long - short

	res := models.ConsensusResult{
		Instrument:   instrument,
		LongCount:    long,
		ShortCount:   short,
		NeutralCount: neutral,
		EvaluatedAt:  time.Now().UTC(),
	}

	switch {
	case long >= a.cfg.MinVotes:
		res.Valid = true
		res.Direction = models.DirectionLong
		res.Reason = fmt.Sprintf("%d of %d indicators long", long, models.NumIndicatorSlots)
	case short >= a.cfg.MinVotes:
		res.Valid = true
		res.Direction = models.DirectionShort
		res.Reason = fmt.Sprintf("%d of %d indicators short", short, models.NumIndicatorSlots)
	case long == a.cfg.NearMissVotes && short == 0 && neutral >= a.cfg.MinNeutral:
		res.Reason = "awaiting confirmation: near-miss long"
	case short == a.cfg.NearMissVotes && long == 0 && neutral >= a.cfg.MinNeutral:
		res.Reason = "awaiting confirmation: near-miss short"
	case long == short && long > 0:
		res.Reason = "exact tie suppressed"
	default:
		res.Reason = "insufficient consensus"
	}
	return res
}
