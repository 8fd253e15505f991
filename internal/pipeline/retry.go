package pipeline

import (
	"context"
	"time"

	"voiceover/internal/services"
)

// retryTransient runs fn up to 1+retries times, retrying only errors that
// services.IsTransient accepts. The wait before attempt n+1 is n*backoff.
// It returns the number of attempts made.
func retryTransient(ctx context.Context, retries int, backoff time.Duration, fn func(attempt int) error) (int, error) {
	if retries < 0 {
		retries = 0
	}
	var err error
	attempt := 0
	for attempt < retries+1 {
		attempt++
		err = fn(attempt)
		if err == nil || !services.IsTransient(err) || attempt > retries {
			return attempt, err
		}
		if backoff <= 0 {
			if ctx.Err() != nil {
				return attempt, err
			}
			continue
		}
		timer := time.NewTimer(time.Duration(attempt) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
	}
	return attempt, err
}
