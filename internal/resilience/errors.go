package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// transientMarkers are substrings that identify retryable provider or
// transport failures. Anthropic surfaces overload as a 529 with an
// "overloaded_error" body; rate limiting as a 429.
var transientMarkers = []string{
	"overloaded",
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"529",
	"timeout",
	"temporarily unavailable",
	"connection reset",
	"connection refused",
	"eof",
}

// IsTransient reports whether err is worth retrying. Context
// cancellation and deadline expiry are never transient since the
// caller has already given up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
