package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrChallenge reports an upstream interstitial that survived the single
// follow-up request.
var ErrChallenge = errors.New("upstream challenge not resolved")

// Transport performs raw upstream requests.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Warmup(ctx context.Context, now time.Time) (Session, error)
}

// Session is the short-lived credential left behind by a warmup request
// (cookies held in the client jar). The caller checks expiry and decides when
// to renew it.
type Session struct {
	Obtained time.Time
	Expires  time.Time
	Cookies  int
}

// Valid reports whether the session can still be relied on at now.
func (s Session) Valid(now time.Time) bool {
	return !s.Expires.IsZero() && now.Before(s.Expires)
}

// StatusError is returned for non-200 upstream responses.
type StatusError struct {
	Code    int
	Snippet string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("upstream HTTP %d", e.Code)
	}
	return fmt.Sprintf("upstream HTTP %d: %s", e.Code, e.Snippet)
}
