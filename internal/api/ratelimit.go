package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"notely/internal/constants"
)

// rateLimitMiddleware allows requests per window for each client IP as seen
// by resolver. Rejected requests get a JSON 429 with Retry-After.
func rateLimitMiddleware(requests int, window time.Duration, resolver *ClientIPResolver) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(retryAfterSeconds(window))

	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(resolver.Key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests from this IP, please try again later.")
		}),
	)
}

func retryAfterSeconds(window time.Duration) int {
	if window <= 0 {
		return 1
	}
	return int(math.Ceil(window.Seconds()))
}
