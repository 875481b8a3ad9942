package richflyer

import (
	"context"
	"time"
)

// PermissionState is the settled outcome of a push-permission query.
type PermissionState string

const (
	PermissionGranted   PermissionState = "granted"
	PermissionDenied    PermissionState = "denied"
	PermissionUndecided PermissionState = "undecided"
)

// PermissionCheck queries the host platform's current permission state.
type PermissionCheck func(ctx context.Context) (PermissionState, error)

// AwaitPermission polls check until the user settles on granted or denied.
// Safari's permission flow reports undecided while its prompt is open; this
// turns that into a single blocking call. Returns the settled state, or the
// context error if ctx ends first.
func AwaitPermission(ctx context.Context, interval time.Duration, check PermissionCheck) (PermissionState, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for {
		state, err := check(ctx)
		if err != nil {
			return PermissionUndecided, err
		}
		if state != PermissionUndecided {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return PermissionUndecided, ctx.Err()
		case <-time.After(interval):
		}
	}
}
