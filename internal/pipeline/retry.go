package pipeline

import "context"

// retryPolicy retries an operation a bounded number of times with no
// backoff; at this call volume a failed embedding request either recovers
// immediately or not at all.
type retryPolicy struct {
	maxAttempts int
}

func (p retryPolicy) do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}
