package fetch

import "time"

// Options bound the fetcher's retry and pagination behavior.
type Options struct {
	// PageSize is the number of records requested per page
	PageSize int

	// MaxAttempts is the number of attempts per call before it is abandoned
	MaxAttempts int

	// RetryDelay is the fixed pause between attempts
	RetryDelay time.Duration

	// RateLimitMargin is added to the reported reset time before resuming
	RateLimitMargin time.Duration

	// MaxPages caps a single walk
	MaxPages int

	// MaxConsecutiveFailures stops a walk after this many abandoned pages in a row
	MaxConsecutiveFailures int

	// MaxRateLimitWaits caps how many refusals a single call may wait out
	MaxRateLimitWaits int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PageSize:               100,
		MaxAttempts:            3,
		RetryDelay:             5 * time.Second,
		RateLimitMargin:        5 * time.Second,
		MaxPages:               1000,
		MaxConsecutiveFailures: 3,
		MaxRateLimitWaits:      10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.RateLimitMargin < 0 {
		o.RateLimitMargin = 0
	}
	if o.MaxPages <= 0 {
		o.MaxPages = d.MaxPages
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = d.MaxConsecutiveFailures
	}
	if o.MaxRateLimitWaits <= 0 {
		o.MaxRateLimitWaits = d.MaxRateLimitWaits
	}
	return o
}
