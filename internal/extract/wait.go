package extract

import (
	"context"
	"time"
)

// WaitForAny waits until any of selectors matches an element on page or
// timeout elapses, whichever comes first. A timeout is not an error: the
// caller proceeds with whatever the page currently holds. Only page failures
// and ctx cancellation are returned as errors.
func WaitForAny(ctx context.Context, page Page, selectors []string, timeout time.Duration) (bool, error) {
	if len(selectors) == 0 {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ok, err := page.WaitForAny(ctx, selectors, timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, err
	}
	return ok, nil
}
