package app

import (
	"context"
	"time"
)

const notificationTimeout = 5 * time.Second

// notificationContext outlives a canceled or timed-out run so the failure
// can still be reported.
func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
