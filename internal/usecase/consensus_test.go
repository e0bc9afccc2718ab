package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"PairScan/internal/domain/models"
	"PairScan/pkg/config"
)

func consensusTestConfig() config.ConsensusConfig {
	return config.ConsensusConfig{MinVotes: 6, NearMissVotes: 5, MinNeutral: 2}
}

// verdictVotes builds a verdict map with the first long slots voting long and
// the next short slots voting short; remaining slots stay absent (neutral).
func verdictVotes(long, short int) map[string]models.Verdict {
	vs := make(map[string]models.Verdict)
	for i := 0; i < long; i++ {
		vs[models.IndicatorSlots[i]] = models.Verdict{Long: true}
	}
	for i := long; i < long+short; i++ {
		vs[models.IndicatorSlots[i]] = models.Verdict{Short: true}
	}
	return vs
}

func TestConsensusEvaluate(t *testing.T) {
	cases := []struct {
		name      string
		long      int
		short     int
		valid     bool
		direction models.Direction
	}{
		{"six long", 6, 0, true, models.DirectionLong},
		{"six short", 0, 6, true, models.DirectionShort},
		{"all long", 8, 0, true, models.DirectionLong},
		{"near-miss long", 5, 0, false, models.DirectionNone},
		{"near-miss short", 0, 5, false, models.DirectionNone},
		{"near-miss spoiled", 5, 1, false, models.DirectionNone},
		{"exact tie", 4, 4, false, models.DirectionNone},
		{"small tie", 2, 2, false, models.DirectionNone},
		{"scattered", 3, 2, false, models.DirectionNone},
		{"silent", 0, 0, false, models.DirectionNone},
	}

	agg := NewConsensusAggregator(consensusTestConfig(), testLogger(t))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := agg.Evaluate(verdictVotes(tc.long, tc.short), "BTCUSDT")
			require.Equal(t, tc.valid, res.Valid)
			require.Equal(t, tc.direction, res.Direction)
			require.Equal(t, tc.long, res.LongCount)
			require.Equal(t, tc.short, res.ShortCount)
			require.Equal(t, models.NumIndicatorSlots-tc.long-tc.short, res.NeutralCount)
			require.NotEmpty(t, res.Reason)
			require.Equal(t, "BTCUSDT", res.Instrument)
		})
	}
}

func TestConsensusNearMissReason(t *testing.T) {
	agg := NewConsensusAggregator(consensusTestConfig(), testLogger(t))

	res := agg.Evaluate(verdictVotes(5, 0), "BTCUSDT")
	require.False(t, res.Valid)
	require.Contains(t, res.Reason, "near-miss")

	// any opposing vote downgrades the near-miss to plain insufficiency
	res = agg.Evaluate(verdictVotes(5, 1), "BTCUSDT")
	require.False(t, res.Valid)
	require.NotContains(t, res.Reason, "near-miss")
}

func TestConsensusTwoSidedIndicatorCountsBoth(t *testing.T) {
	agg := NewConsensusAggregator(consensusTestConfig(), testLogger(t))

	vs := verdictVotes(6, 0)
	vs[models.IndicatorSlots[0]] = models.Verdict{Long: true, Short: true}

	res := agg.Evaluate(vs, "BTCUSDT")
	require.True(t, res.Valid)
	require.Equal(t, models.DirectionLong, res.Direction)
	require.Equal(t, 6, res.LongCount)
	require.Equal(t, 1, res.ShortCount)
	require.Equal(t, 1, res.NeutralCount)
}

func TestConsensusMissingSlotsAreNeutral(t *testing.T) {
	agg := NewConsensusAggregator(consensusTestConfig(), testLogger(t))

	res := agg.Evaluate(nil, "BTCUSDT")
	require.False(t, res.Valid)
	require.Equal(t, models.NumIndicatorSlots, res.NeutralCount)
}
