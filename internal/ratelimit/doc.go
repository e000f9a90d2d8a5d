// Package ratelimit computes politeness delays between outbound requests.
//
// A Limiter draws every delay uniformly from a configured [min, max] range.
// Retries layer an exponential backoff multiplier on top of the same draw,
// so the site sees jittered, increasingly spaced requests after failures.
//
// The random source is injectable to make sampling reproducible in tests:
//
//	l, err := ratelimit.New(2*time.Second, 5*time.Second,
//	    ratelimit.WithRand(rand.NewPCG(1, 2)))
//
// A Limiter is used by a single worker and is not safe for concurrent use.
package ratelimit
