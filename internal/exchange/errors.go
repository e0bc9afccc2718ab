package exchange

import "errors"

// Error classes the fetch retry policy distinguishes. Anything else is
// treated as a generic transient failure.
var (
	ErrSymbolNotFound = errors.New("exchange: symbol not found")
	ErrRateLimited    = errors.New("exchange: rate limited")
	ErrEmptyResponse  = errors.New("exchange: empty response")
)

// IsSymbolNotFound reports whether err is the permanent unknown-symbol class.
func IsSymbolNotFound(err error) bool {
	return errors.Is(err, ErrSymbolNotFound)
}

// IsRateLimited reports whether err is the rate-limit class.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsEmptyResponse reports whether err is the empty-response class.
func IsEmptyResponse(err error) bool {
	return errors.Is(err, ErrEmptyResponse)
}
