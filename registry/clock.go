package registry

import (
	"context"
	"time"
)

// Clock abstracts time for the retry logic, so the policy can be tested
// without real delays.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is cancelled, whichever comes first.
	// It returns ctx.Err() when the context won the race.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
