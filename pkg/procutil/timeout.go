package procutil

import (
	"context"
	"time"
)

// SoftTimeout runs f and reports slowness without cancelling it. If f
// outlives d, onLate fires once with the threshold; when f then finishes,
// onDone fires with the total elapsed time. If f finishes within d neither
// callback fires. onLate runs on a separate goroutine.
func SoftTimeout(ctx context.Context, d time.Duration, onLate, onDone func(time.Duration), f func(context.Context) error) error {
	start := time.Now()
	timer := time.AfterFunc(d, func() { onLate(d) })
	err := f(ctx)
	if !timer.Stop() {
		onDone(time.Since(start))
	}
	return err
}
