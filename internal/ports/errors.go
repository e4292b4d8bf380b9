package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown              = errors.New("unknown error occurred")
	ErrInvalidRequest       = errors.New("invalid request parameters or format")
	ErrNotFound             = errors.New("resource not found")
	ErrTimeout              = errors.New("operation timed out")
	ErrContextCanceled      = errors.New("operation canceled via context")
	ErrInvalidConfiguration = errors.New("invalid or missing configuration")
	ErrAuthenticationFailed = errors.New("feed authentication failed (check API keys)")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrCacheMiss            = errors.New("cache: key not found")
	ErrRunActive            = errors.New("a simulation run is already active")
	ErrRunNotFound          = errors.New("simulation run not found")

	// Feed Errors
	ErrFeedUnavailable = errors.New("market data feed is unavailable")
	ErrFeedEmpty       = errors.New("market data feed returned no bars")
	ErrFeedStale       = errors.New("market data feed returned no new bar")
	ErrFeedExhausted   = errors.New("market data feed has no more bars")

	// Ledger Errors
	ErrInsufficientFunds  = errors.New("insufficient funds for operation")
	ErrInsufficientShares = errors.New("insufficient shares for operation")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidPrice       = errors.New("invalid price")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrDeleteFailed = errors.New("database delete failed")
)

// IsFeedError reports whether err belongs to the transient feed family that the loop retries.
func IsFeedError(err error) bool {
	return errors.Is(err, ErrFeedUnavailable) ||
		errors.Is(err, ErrFeedEmpty) ||
		errors.Is(err, ErrFeedStale) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsDeclined reports whether err is a silently declined order.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInsufficientShares)
}
