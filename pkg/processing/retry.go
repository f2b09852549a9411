package processing

import (
	"context"
	"fmt"
	"time"
)

// Policy is a bounded in-process retry with fixed backoff. It covers
// notification delivery only; fetch rate-limiting is never retried
// in-process - the orchestrator hands it back to the task runtime as a
// scheduled redelivery.
type Policy struct {
	Attempts int
	Backoff  time.Duration
	Sleep    func(time.Duration) // test hook, defaults to a context-aware sleep
}

// NotificationRetry is the delivery policy for system events.
var NotificationRetry = Policy{Attempts: 3, Backoff: 10 * time.Second}

// Run invokes op until it succeeds or the attempt budget is exhausted.
func (p Policy) Run(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if p.Sleep != nil {
			p.Sleep(p.Backoff)
			continue
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("retry exhausted after %d attempts: %w", attempts, err)
}
