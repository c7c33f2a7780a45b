package separation

import (
	"context"
	"fmt"
	"time"
)

// Retry wraps a Separator with a per-attempt timeout and a linear backoff
// between attempts. Attempts <= 0 means a single attempt.
type Retry struct {
	Separator Separator
	Attempts  int
	Backoff   time.Duration
	Timeout   time.Duration
}

func (r Retry) Separate(ctx context.Context, src []byte) ([]byte, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		out, err := r.once(ctx, src)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("separation: gave up after %d attempt(s): %w", i, ctx.Err())
		case <-time.After(r.Backoff * time.Duration(i)):
		}
	}
	return nil, fmt.Errorf("separation: gave up after %d attempt(s): %w", attempts, lastErr)
}

func (r Retry) once(ctx context.Context, src []byte) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Separator.Separate(ctx, src)
}
