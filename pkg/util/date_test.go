package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2026-08-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2026, 8, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2026, 8, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	if got := ParseTimeDefault("garbage", def); !got.Equal(def) {
		t.Fatalf("expected default for invalid input")
	}
}

func TestAlignTime(t *testing.T) {
	in := time.Date(2026, 8, 10, 13, 47, 31, 0, time.UTC)
	cases := []struct {
		tf   string
		want time.Time
	}{
		{"1m", time.Date(2026, 8, 10, 13, 47, 0, 0, time.UTC)},
		{"15m", time.Date(2026, 8, 10, 13, 45, 0, 0, time.UTC)},
		{"1h", time.Date(2026, 8, 10, 13, 0, 0, 0, time.UTC)},
		{"4h", time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)},
		{"2h", time.Date(2026, 8, 10, 13, 47, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := AlignTime(in, tc.tf); !got.Equal(tc.want) {
			t.Fatalf("AlignTime(%s) = %v, want %v", tc.tf, got, tc.want)
		}
	}
}
