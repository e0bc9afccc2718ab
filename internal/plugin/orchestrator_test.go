package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PairScan/internal/domain/models"
	applogger "PairScan/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// stubUnit is a scriptable unit that records lifecycle calls into a shared
// trace.
type stubUnit struct {
	name    string
	deps    []string
	initErr error
	execute func(ctx context.Context, cy *Cycle) Result

	mu        sync.Mutex
	trace     *[]string
	cancelled bool
}

func newStubUnit(name string, trace *[]string) *stubUnit {
	return &stubUnit{name: name, trace: trace}
}

func (u *stubUnit) record(event string) {
	if u.trace == nil {
		return
	}
	u.mu.Lock()
	*u.trace = append(*u.trace, u.name+":"+event)
	u.mu.Unlock()
}

func (u *stubUnit) Name() string { return u.name }

func (u *stubUnit) Init(ctx context.Context) error {
	u.record("init")
	return u.initErr
}

func (u *stubUnit) Execute(ctx context.Context, cy *Cycle) Result {
	u.record("execute")
	if u.execute != nil {
		return u.execute(ctx, cy)
	}
	return Result{Unit: u.name, Status: StatusOK}
}

func (u *stubUnit) Shutdown(ctx context.Context) error {
	u.record("shutdown")
	return nil
}

func (u *stubUnit) DependsOn() []string { return u.deps }

func (u *stubUnit) RequestCancellation() {
	u.mu.Lock()
	u.cancelled = true
	u.mu.Unlock()
}

func (u *stubUnit) CancellationRequested() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancelled
}

func TestOrchestratorRejectsDuplicateNames(t *testing.T) {
	o := NewOrchestrator(testLogger(t))
	require.NoError(t, o.Register(newStubUnit("filter", nil)))
	require.Error(t, o.Register(newStubUnit("filter", nil)))
}

func TestOrchestratorRunsInRegistrationOrder(t *testing.T) {
	var trace []string
	o := NewOrchestrator(testLogger(t))
	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, o.Register(newStubUnit(name, &trace)))
	}
	require.NoError(t, o.Init(context.Background()))

	trace = trace[:0]
	cy, status := o.RunCycle(context.Background())
	require.Equal(t, CycleOK, status)
	require.Equal(t, uint64(1), cy.Seq)
	require.Equal(t, []string{"alpha:execute", "beta:execute", "gamma:execute"}, trace)
}

func TestOrchestratorHonorsDependencies(t *testing.T) {
	var trace []string
	consumer := newStubUnit("consumer", &trace)
	consumer.deps = []string{"producer"}
	producer := newStubUnit("producer", &trace)

	o := NewOrchestrator(testLogger(t))
	// registered in the wrong order on purpose
	require.NoError(t, o.Register(consumer))
	require.NoError(t, o.Register(producer))
	require.NoError(t, o.Init(context.Background()))

	trace = trace[:0]
	o.RunCycle(context.Background())
	require.Equal(t, []string{"producer:execute", "consumer:execute"}, trace)
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	var trace []string
	bad := newStubUnit("bad", &trace)
	bad.execute = func(ctx context.Context, cy *Cycle) Result {
		return Result{Unit: "bad", Status: StatusError, Err: errors.New("boom")}
	}
	panicky := newStubUnit("panicky", &trace)
	panicky.execute = func(ctx context.Context, cy *Cycle) Result {
		panic("kaboom")
	}
	good := newStubUnit("good", &trace)
	good.execute = func(ctx context.Context, cy *Cycle) Result {
		return Result{Unit: "good", Status: StatusOK, Filter: &models.FilterOutcome{Approved: []string{"BTCUSDT"}}}
	}

	o := NewOrchestrator(testLogger(t))
	require.NoError(t, o.Register(bad))
	require.NoError(t, o.Register(panicky))
	require.NoError(t, o.Register(good))
	require.NoError(t, o.Init(context.Background()))

	cy, status := o.RunCycle(context.Background())
	require.Equal(t, CyclePartial, status)

	// only ok payloads are merged
	_, ok := cy.Result("bad")
	require.False(t, ok)
	_, ok = cy.Result("panicky")
	require.False(t, ok)
	require.Equal(t, []string{"BTCUSDT"}, cy.ApprovedInstruments())
}

func TestOrchestratorCycleStatuses(t *testing.T) {
	failing := func(name string) *stubUnit {
		u := newStubUnit(name, nil)
		u.execute = func(ctx context.Context, cy *Cycle) Result {
			return Result{Unit: name, Status: StatusError, Err: errors.New("boom")}
		}
		return u
	}

	t.Run("all fail", func(t *testing.T) {
		o := NewOrchestrator(testLogger(t))
		require.NoError(t, o.Register(failing("a")))
		require.NoError(t, o.Register(failing("b")))
		require.NoError(t, o.Init(context.Background()))
		_, status := o.RunCycle(context.Background())
		require.Equal(t, CycleError, status)
	})

	t.Run("all ok", func(t *testing.T) {
		o := NewOrchestrator(testLogger(t))
		require.NoError(t, o.Register(newStubUnit("a", nil)))
		require.NoError(t, o.Init(context.Background()))
		_, status := o.RunCycle(context.Background())
		require.Equal(t, CycleOK, status)

		last, lastStatus := o.LastCycle()
		require.NotNil(t, last)
		require.Equal(t, CycleOK, lastStatus)
	})
}

func TestOrchestratorSkipsFailedInit(t *testing.T) {
	var trace []string
	broken := newStubUnit("broken", &trace)
	broken.initErr = errors.New("no database")
	healthy := newStubUnit("healthy", &trace)

	o := NewOrchestrator(testLogger(t))
	require.NoError(t, o.Register(broken))
	require.NoError(t, o.Register(healthy))
	require.Error(t, o.Init(context.Background()))

	trace = trace[:0]
	_, status := o.RunCycle(context.Background())
	require.Equal(t, CycleOK, status)
	require.Equal(t, []string{"healthy:execute"}, trace)
}

func TestOrchestratorShutdownReverseOrder(t *testing.T) {
	var trace []string
	o := NewOrchestrator(testLogger(t))
	for _, name := range []string{"alpha", "beta"} {
		require.NoError(t, o.Register(newStubUnit(name, &trace)))
	}
	require.NoError(t, o.Init(context.Background()))

	trace = trace[:0]
	require.NoError(t, o.Shutdown(context.Background()))
	require.Equal(t, []string{"beta:shutdown", "alpha:shutdown"}, trace)
}

func TestOrchestratorForwardsCancellation(t *testing.T) {
	u := newStubUnit("cancellable", nil)
	o := NewOrchestrator(testLogger(t))
	require.NoError(t, o.Register(u))
	require.NoError(t, o.Init(context.Background()))

	o.RequestCancellation()
	require.True(t, u.CancellationRequested())
}

func TestCycleAccessors(t *testing.T) {
	cy := newCycle(7, time.Now().UTC())
	require.Nil(t, cy.ApprovedInstruments())
	require.Nil(t, cy.CandleData())
	require.Nil(t, cy.Signals())

	cy.put(Result{
		Unit:    "consensus",
		Status:  StatusOK,
		Signals: []models.ConsensusResult{{Instrument: "BTCUSDT", Valid: true}},
	})
	require.Len(t, cy.Signals(), 1)
}
