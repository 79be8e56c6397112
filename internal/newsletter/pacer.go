package newsletter

import (
	"context"
	"time"
)

// Pacer waits between batches. Implementations return ctx.Err() when the
// context ends before the pause is over.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// SleepPacer pauses for the full duration.
type SleepPacer struct{}

func (SleepPacer) Pause(ctx context.Context, d time.Duration) error {
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
