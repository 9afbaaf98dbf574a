package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunWithTimeout runs fn and gives up once timeout has elapsed. fn sees a
// cancelled context at that point and is expected to return soon after.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("reconciliation timed out after %v", timeout)
		}
		return fmt.Errorf("reconciliation interrupted: %w", ctx.Err())
	}
}
