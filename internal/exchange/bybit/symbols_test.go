package bybit

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTCUSDT", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
		{"BTC/USDT:USDT", "BTCUSDT"},
		{"btc/usdt:usdt", "BTCUSDT"},
		{" ETHUSDT ", "ETHUSDT"},
		{"1000PEPE/USDT", "1000PEPEUSDT"},
		{"ETH/BTC", "ETHBTC"},
		{"SOL/USDC:USDC", "SOLUSDC"},
		{"BTC/USD:BTC", "BTCUSDBTC"}, // inverse quote does not repeat
	}
	for _, tc := range cases {
		if got := NormalizeSymbol(tc.in); got != tc.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCandidateSymbols(t *testing.T) {
	cands := CandidateSymbols("BTC/USDT:USDT")
	if len(cands) == 0 || cands[0] != "BTCUSDT" {
		t.Fatalf("candidates = %v, want normalized form first", cands)
	}
	seen := make(map[string]bool)
	for _, c := range cands {
		if seen[c] {
			t.Fatalf("duplicate candidate %q in %v", c, cands)
		}
		seen[c] = true
	}
}

func TestMatchSymbol(t *testing.T) {
	universe := map[string]struct{}{
		"BTCUSDT": {},
		"ETHUSDT": {},
	}

	for _, q := range []string{"BTCUSDT", "BTC/USDT", "BTC/USDT:USDT", "btc/usdt"} {
		key, ok := MatchSymbol(q, universe)
		if !ok || key != "BTCUSDT" {
			t.Errorf("MatchSymbol(%q) = %q %v, want BTCUSDT", q, key, ok)
		}
	}

	if _, ok := MatchSymbol("DOGEUSDT", universe); ok {
		t.Errorf("matched a symbol missing from the universe")
	}
}

func TestMatchSymbolNormalizesUniverseKeys(t *testing.T) {
	universe := map[string]struct{}{"BTC/USDT:USDT": {}}
	key, ok := MatchSymbol("BTCUSDT", universe)
	if !ok || key != "BTC/USDT:USDT" {
		t.Fatalf("MatchSymbol = %q %v, want the exchange-side key", key, ok)
	}
}
