package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	"PairScan/internal/exchange"
	"PairScan/pkg/config"
)

func fetchTestConfig() config.AcquisitionConfig {
	return config.AcquisitionConfig{
		BatchSize:       10,
		CandleCount:     100,
		MaxWorkers:      5,
		MaxRetries:      2,
		RetryPause:      time.Second,
		FetchTimeout:    5 * time.Second,
		MinCycleTimeout: 60 * time.Second,
		PerFetchBudget:  5 * time.Second,
	}
}

// scriptedFetcher replays one response per attempt and records the pauses the
// retry loop requested instead of sleeping.
func scriptedFetcher(t *testing.T, responses []func() (models.CandleSeries, error)) (*Fetcher, *[]time.Duration) {
	t.Helper()
	i := 0
	ex := &fakeExchange{ohlcv: func(symbol string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
		if i >= len(responses) {
			t.Fatalf("unexpected attempt %d", i+1)
		}
		r := responses[i]
		i++
		return r()
	}}

	f := NewFetcher(ex, fetchTestConfig(), testLogger(t), newRecordingMetrics())
	var pauses []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}
	return f, &pauses
}

func ok() (models.CandleSeries, error) {
	return activeSeries(3, repository.TF1h, time.Now()), nil
}

func empty() (models.CandleSeries, error) { return nil, nil }

func fail(err error) func() (models.CandleSeries, error) {
	return func() (models.CandleSeries, error) { return nil, err }
}

func runTask(f *Fetcher) *FetchTask {
	return f.Run(context.Background(), &FetchTask{
		Instrument:  "BTCUSDT",
		Timeframe:   repository.TF1h,
		CandleCount: 100,
	})
}

func TestFetcherFirstAttemptSucceeds(t *testing.T) {
	f, pauses := scriptedFetcher(t, []func() (models.CandleSeries, error){ok})
	task := runTask(f)
	if task.State != TaskSucceeded || task.Attempts != 1 || len(task.Series) == 0 {
		t.Fatalf("task = %+v", task)
	}
	if len(*pauses) != 0 {
		t.Fatalf("unexpected pauses %v", *pauses)
	}
}

func TestFetcherEmptyResponseFixedPause(t *testing.T) {
	f, pauses := scriptedFetcher(t, []func() (models.CandleSeries, error){empty, empty, ok})
	task := runTask(f)
	if task.State != TaskSucceeded || task.Attempts != 3 {
		t.Fatalf("task = %+v", task)
	}
	want := []time.Duration{time.Second, time.Second}
	if len(*pauses) != len(want) || (*pauses)[0] != want[0] || (*pauses)[1] != want[1] {
		t.Fatalf("pauses = %v, want %v", *pauses, want)
	}
}

func TestFetcherEmptyResponseExhausted(t *testing.T) {
	f, _ := scriptedFetcher(t, []func() (models.CandleSeries, error){empty, empty, empty})
	task := runTask(f)
	if task.State != TaskUnavailable || task.Attempts != 3 {
		t.Fatalf("task = %+v", task)
	}
	if !exchange.IsEmptyResponse(task.Err) {
		t.Fatalf("err = %v, want empty-response class", task.Err)
	}
}

func TestFetcherUnknownSymbolNeverRetries(t *testing.T) {
	f, pauses := scriptedFetcher(t, []func() (models.CandleSeries, error){fail(exchange.ErrSymbolNotFound)})
	task := runTask(f)
	if task.State != TaskUnavailable || task.Attempts != 1 {
		t.Fatalf("task = %+v", task)
	}
	if len(*pauses) != 0 {
		t.Fatalf("unexpected pauses %v", *pauses)
	}
}

func TestFetcherRateLimitBackoffGrows(t *testing.T) {
	f, pauses := scriptedFetcher(t, []func() (models.CandleSeries, error){
		fail(exchange.ErrRateLimited),
		fail(exchange.ErrRateLimited),
		ok,
	})
	task := runTask(f)
	if task.State != TaskSucceeded || task.Attempts != 3 {
		t.Fatalf("task = %+v", task)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*pauses) != len(want) || (*pauses)[0] != want[0] || (*pauses)[1] != want[1] {
		t.Fatalf("pauses = %v, want %v", *pauses, want)
	}
}

func TestFetcherGenericErrorSingleRetry(t *testing.T) {
	boom := errors.New("boom")

	f, _ := scriptedFetcher(t, []func() (models.CandleSeries, error){fail(boom), ok})
	task := runTask(f)
	if task.State != TaskSucceeded || task.Attempts != 2 {
		t.Fatalf("task = %+v", task)
	}

	f, _ = scriptedFetcher(t, []func() (models.CandleSeries, error){fail(boom), fail(boom)})
	task = runTask(f)
	if task.State != TaskUnavailable || task.Attempts != 2 {
		t.Fatalf("task = %+v", task)
	}
	if !errors.Is(task.Err, boom) {
		t.Fatalf("err = %v, want the original failure", task.Err)
	}
}

func TestFetcherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := scriptedFetcher(t, nil)
	task := f.Run(ctx, &FetchTask{Instrument: "BTCUSDT", Timeframe: repository.TF1h, CandleCount: 100})
	if task.State != TaskUnavailable || !errors.Is(task.Err, context.Canceled) {
		t.Fatalf("task = %+v", task)
	}
}

func TestTaskStateString(t *testing.T) {
	states := map[TaskState]string{
		TaskPending:     "pending",
		TaskRetrying:    "retrying",
		TaskSucceeded:   "succeeded",
		TaskUnavailable: "unavailable",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", s, s.String(), want)
		}
	}
}
