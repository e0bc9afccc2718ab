package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"PairScan/internal/domain/models"
)

func TestVerdictRegistryRecord(t *testing.T) {
	r := NewVerdictRegistry()

	require.True(t, r.Record("BTCUSDT", "rsi", models.Verdict{Long: true}))
	require.False(t, r.Record("BTCUSDT", "astrology", models.Verdict{Long: true}))

	vs := r.Snapshot("BTCUSDT")
	require.Len(t, vs, 1)
	require.True(t, vs["rsi"].Long)
	require.Nil(t, r.Snapshot("ETHUSDT"))
}

func TestVerdictRegistrySnapshotIsACopy(t *testing.T) {
	r := NewVerdictRegistry()
	r.Record("BTCUSDT", "rsi", models.Verdict{Long: true})

	vs := r.Snapshot("BTCUSDT")
	vs["rsi"] = models.Verdict{Short: true}
	vs["macd"] = models.Verdict{Long: true}

	again := r.Snapshot("BTCUSDT")
	require.Len(t, again, 1)
	require.True(t, again["rsi"].Long)
}

func TestVerdictRegistryRecordAllAndClear(t *testing.T) {
	r := NewVerdictRegistry()
	r.RecordAll("BTCUSDT", map[string]models.Verdict{
		"rsi":       {Long: true},
		"macd":      {Long: true},
		"astrology": {Long: true}, // dropped
	})
	r.Record("ETHUSDT", "adx", models.Verdict{Short: true})

	require.Len(t, r.Snapshot("BTCUSDT"), 2)

	syms := r.Instruments()
	sort.Strings(syms)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, syms)

	r.Clear("BTCUSDT")
	require.Nil(t, r.Snapshot("BTCUSDT"))
	require.NotNil(t, r.Snapshot("ETHUSDT"))
}

func TestVerdictRegistryConcurrentWriters(t *testing.T) {
	r := NewVerdictRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record("BTCUSDT", models.IndicatorSlots[i], models.Verdict{Long: true})
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, r.Snapshot("BTCUSDT"), models.NumIndicatorSlots)
}

// fakePublisher captures published signals and optionally fails.
type fakePublisher struct {
	mu        sync.Mutex
	published []models.ConsensusResult
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, res models.ConsensusResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, res)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestSignalsEvaluateAllPublishesAndClears(t *testing.T) {
	registry := NewVerdictRegistry()
	registry.RecordAll("BTCUSDT", verdictVotes(6, 0))
	registry.RecordAll("ETHUSDT", verdictVotes(3, 2))

	pub := &fakePublisher{}
	m := newRecordingMetrics()
	uc := NewSignalsUseCase(registry, NewConsensusAggregator(consensusTestConfig(), testLogger(t)), pub, m)

	results := uc.EvaluateAll(context.Background(), nil)
	require.Len(t, results, 2)

	require.Len(t, pub.published, 1)
	require.Equal(t, "BTCUSDT", pub.published[0].Instrument)
	require.Equal(t, models.DirectionLong, pub.published[0].Direction)

	// published verdicts are cleared, insufficient ones stay for next cycle
	require.Nil(t, registry.Snapshot("BTCUSDT"))
	require.NotNil(t, registry.Snapshot("ETHUSDT"))
}

func TestSignalsEvaluateAllKeepsVerdictsOnPublishFailure(t *testing.T) {
	registry := NewVerdictRegistry()
	registry.RecordAll("BTCUSDT", verdictVotes(6, 0))

	pub := &fakePublisher{err: errors.New("broker down")}
	m := newRecordingMetrics()
	uc := NewSignalsUseCase(registry, NewConsensusAggregator(consensusTestConfig(), testLogger(t)), pub, m)

	uc.EvaluateAll(context.Background(), nil)
	require.NotNil(t, registry.Snapshot("BTCUSDT"))
	require.Equal(t, 1, m.errorCount("signal_publish"))
}

func TestSignalsEvaluateSingle(t *testing.T) {
	registry := NewVerdictRegistry()
	uc := NewSignalsUseCase(registry, NewConsensusAggregator(consensusTestConfig(), testLogger(t)), nil, newRecordingMetrics())

	res := uc.Evaluate("BTCUSDT")
	require.False(t, res.Valid)
	require.Equal(t, models.NumIndicatorSlots, res.NeutralCount)

	registry.RecordAll("BTCUSDT", verdictVotes(0, 7))
	res = uc.Evaluate("BTCUSDT")
	require.True(t, res.Valid)
	require.Equal(t, models.DirectionShort, res.Direction)
}
