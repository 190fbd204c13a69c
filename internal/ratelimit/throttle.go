// Package ratelimit paces inbound requests to a fixed rate
package ratelimit

import (
	"net/http"

	"go.uber.org/ratelimit"
)

// Throttle spaces requests evenly so that no more than the configured
// number per second reach the next handler. Excess requests wait.
type Throttle struct {
	limiter ratelimit.Limiter
	rate    int
}

// New creates a throttle for rps requests per second.
// A non-positive rps returns a throttle that never waits.
func New(rps int) *Throttle {
	if rps <= 0 {
		return &Throttle{limiter: ratelimit.NewUnlimited()}
	}
	return &Throttle{
		limiter: ratelimit.New(rps, ratelimit.WithoutSlack),
		rate:    rps,
	}
}

// Enabled returns true if requests are paced
func (t *Throttle) Enabled() bool {
	return t.rate > 0
}

// Rate returns the configured requests per second, 0 when disabled
func (t *Throttle) Rate() int {
	return t.rate
}

// Middleware waits for a slot before passing the request on. The wait does
// not observe the request context: a client that disconnects still holds
// its place in line and uses up a slot. Once the slot comes round, requests
// whose context is already done are not passed on.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	if !t.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.limiter.Take()
		if r.Context().Err() != nil {
			return
		}
		next.ServeHTTP(w, r)
	})
}
