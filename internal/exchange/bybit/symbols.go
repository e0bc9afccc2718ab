package bybit

import "strings"

// Instruments appear in three shapes depending on where they were configured:
// "BTCUSDT", "BTC/USDT", and the linear-futures form "BTC/USDT:USDT". All
// lookups try each shape plus a normalized comparison before declaring the
// symbol unmatched.

// NormalizeSymbol strips separators and deduplicates a repeated quote suffix,
// yielding the canonical exchange form ("BTC/USDT:USDT" -> "BTCUSDT").
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ':'); i >= 0 {
		suffix := s[i+1:]
		s = s[:i]
		s = strings.ReplaceAll(s, "/", "")
		if suffix != "" && strings.HasSuffix(s, suffix) {
			return s
		}
		return s + suffix
	}
	return strings.ReplaceAll(s, "/", "")
}

// CandidateSymbols returns the shapes to try against an exchange response,
// most specific first, without duplicates.
func CandidateSymbols(s string) []string {
	norm := NormalizeSymbol(s)
	raw := strings.ToUpper(strings.TrimSpace(s))
	cands := []string{norm}
	for _, c := range []string{raw, strings.ReplaceAll(raw, "/", "")} {
		if c != "" && !contains(cands, c) {
			cands = append(cands, c)
		}
	}
	return cands
}

// MatchSymbol resolves sym against a set of exchange symbols, tolerating all
// three shapes on either side. Returns the exchange-side key that matched.
func MatchSymbol[T any](sym string, universe map[string]T) (string, bool) {
	for _, c := range CandidateSymbols(sym) {
		if _, ok := universe[c]; ok {
			return c, true
		}
	}
	// last resort: normalize the universe keys too
	want := NormalizeSymbol(sym)
	for k := range universe {
		if NormalizeSymbol(k) == want {
			return k, true
		}
	}
	return "", false
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
