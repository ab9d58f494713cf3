package rate

import "errors"

var (
	// ErrRateLimited is returned when a budget for the current window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures while reading or writing counters.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
