package repository

import (
	"testing"
	"time"
)

func TestTimeframeDuration(t *testing.T) {
	cases := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{TF15m, 15 * time.Minute},
		{TF1h, time.Hour},
		{TF4h, 4 * time.Hour},
		{TF1d, 24 * time.Hour},
		{Timeframe("3m"), 0},
	}
	for _, tc := range cases {
		if got := tc.tf.Duration(); got != tc.want {
			t.Errorf("%s.Duration() = %v, want %v", tc.tf, got, tc.want)
		}
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	if got := NormalizeTimeframe("15m"); got != TF15m {
		t.Fatalf("NormalizeTimeframe(15m) = %s", got)
	}
	if got := NormalizeTimeframe("weird"); got != TF1h {
		t.Fatalf("NormalizeTimeframe(weird) = %s, want the 1h fallback", got)
	}
	if got := NormalizeTimeframe(""); got != TF1h {
		t.Fatalf("NormalizeTimeframe(empty) = %s, want the 1h fallback", got)
	}
}

func TestIsValidTimeframe(t *testing.T) {
	for _, tf := range CoreTimeframes {
		if !IsValidTimeframe(tf) {
			t.Errorf("%s not valid", tf)
		}
	}
	if IsValidTimeframe(Timeframe("2h")) {
		t.Errorf("2h accepted")
	}
}
