package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/sitemonitor/internal/classify"
	"github.com/hamed0406/sitemonitor/internal/domain"
)

// RetryFetcher re-runs a navigation that failed with a retryable category.
// Responses, including 4xx/5xx ones, are returned as-is.
type RetryFetcher struct {
	Inner    PageFetcher
	Attempts int
	Backoff  time.Duration
}

func (r *RetryFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (domain.PageResult, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var (
		page domain.PageResult
		err  error
	)
	for i := 0; i < attempts; i++ {
		page, err = r.Inner.Fetch(ctx, target, timeout)
		if err == nil || !Retryable(err) {
			return page, err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return page, err
		case <-time.After(r.Backoff * time.Duration(i+1)):
		}
	}
	if attempts > 1 {
		err = fmt.Errorf("%w (after %d attempts)", err, attempts)
	}
	return page, err
}

// CaptureScreenshot forwards to the wrapped fetcher when it can capture.
func (r *RetryFetcher) CaptureScreenshot(ctx context.Context, dest string) error {
	s, ok := r.Inner.(Screenshotter)
	if !ok {
		return ErrScreenshotUnsupported
	}
	return s.CaptureScreenshot(ctx, dest)
}

// Retryable reports whether the category of a navigation failure allows a retry.
func Retryable(err error) bool {
	return classify.MetadataFor(classify.Categorize(err.Error(), 0)).Retryable
}
