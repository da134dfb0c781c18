package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultAttempts = 3
	DefaultWaitMin  = time.Second
	DefaultWaitMax  = 30 * time.Second

	maxErrorBody = 512
)

// ErrPermanent marks failures that retrying cannot fix (4xx other than 429).
var ErrPermanent = errors.New("permanent delivery failure")

// StatusError is a non-2xx answer from a notification endpoint.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s: %s", e.Service, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrPermanent && e.Permanent()
}

func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// FailureKind labels a delivery error for logs: "auth", "client" or "transient".
func FailureKind(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
			return "auth"
		case se.Permanent():
			return "client"
		}
		return "transient"
	}
	if errors.Is(err, ErrPermanent) {
		return "client"
	}
	return "transient"
}

// NewRetryClient builds the HTTP client shared by every channel. It makes at
// most attempts requests, retrying transport errors, 5xx and 429 with a
// linear backoff that honors Retry-After. 4xx answers are returned at once.
func NewRetryClient(attempts int, waitMin, waitMax, timeout time.Duration) *retryablehttp.Client {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	client := retryablehttp.NewClient()
	client.RetryMax = attempts - 1
	client.RetryWaitMin = waitMin
	client.RetryWaitMax = waitMax
	client.Logger = nil // we log outcomes ourselves
	client.HTTPClient.Timeout = timeout
	client.CheckRetry = retryPolicy
	client.Backoff = linearBackoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil //nolint:nilerr // transport errors are retried; the last one is passed through
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

func linearBackoff(waitMin, waitMax time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s >= 0 {
			wait := time.Duration(s) * time.Second
			if wait > waitMax {
				wait = waitMax
			}
			return wait
		}
	}
	wait := waitMin * time.Duration(attemptNum+1)
	if wait > waitMax {
		wait = waitMax
	}
	return wait
}

// send performs one logical request and returns the body of a 2xx answer.
func send(ctx context.Context, c *retryablehttp.Client, service, method, url string, header http.Header, body []byte) ([]byte, error) {
	b, _, err := exchange(ctx, c, service, method, url, header, body)
	return b, err
}

// exchange is send that also returns the response headers.
func exchange(ctx context.Context, c *retryablehttp.Client, service, method, url string, header http.Header, body []byte) ([]byte, http.Header, error) {
	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: build request: %w", service, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read response: %w", service, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, nil, &StatusError{Service: service, StatusCode: resp.StatusCode, Body: truncate(string(b), maxErrorBody)}
	}
	return b, resp.Header, nil
}
