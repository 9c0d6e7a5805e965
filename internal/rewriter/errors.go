package rewriter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrUnreachable marks connection failures, timeouts and gateway errors.
	// Retried with backoff.
	ErrUnreachable = errors.New("rewrite endpoint unreachable")

	// ErrRateLimited marks HTTP 429. Retried after the service-specified
	// delay when one is given, otherwise with backoff.
	ErrRateLimited = errors.New("rewrite endpoint rate limited")

	// ErrInvalidResponse marks malformed or empty payloads. Never retried;
	// the caller keeps the original text for the batch.
	ErrInvalidResponse = errors.New("invalid rewrite response")
)

// RateLimitError carries the delay from a Retry-After header, if any.
// errors.Is(err, ErrRateLimited) holds for it.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rewrite endpoint rate limited, retry after %s", e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// rateLimitFromResponse builds a RateLimitError from a 429 response.
func rateLimitFromResponse(resp *http.Response) *RateLimitError {
	e := &RateLimitError{}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				e.RetryAfter = d
			}
		}
	}
	return e
}

// statusError classifies a non-200 status code into the error taxonomy.
func statusError(service string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return rateLimitFromResponse(resp)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s returned status %d", ErrUnreachable, service, resp.StatusCode)
	default:
		return fmt.Errorf("%s returned status %d", service, resp.StatusCode)
	}
}

// retryable reports whether err is transient and worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrRateLimited)
}
