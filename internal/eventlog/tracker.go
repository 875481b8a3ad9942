// Package eventlog guards the at-most-once delivery of the
// launched-from-notification engagement event.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/channel"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/storage"
)

var (
	// ErrAlreadySent indicates the event for the current notification was
	// already reported.
	ErrAlreadySent = errors.New("event log already sent")
	// ErrNoPendingNotification indicates no notification record exists.
	ErrNoPendingNotification = errors.New("no pending notification")
	// ErrUnsupportedEnvironment indicates the subscription variant cannot
	// report event logs.
	ErrUnsupportedEnvironment = errors.New("event log not supported for this subscription")
	// ErrRegisterFailed indicates the backend call failed; the notification
	// stays pending so a later attempt may retry.
	ErrRegisterFailed = errors.New("register event log failed")
)

// Tracker orchestrates event-log delivery against the single persisted
// notification record. The mutex keeps concurrent registrations from
// double-reporting one notification.
type Tracker struct {
	mu      sync.Mutex
	store   storage.NotificationStore
	channel *channel.Channel
	now     func() time.Time
}

// NewTracker builds a Tracker.
func NewTracker(store storage.NotificationStore, ch *channel.Channel) *Tracker {
	return &Tracker{store: store, channel: ch, now: time.Now}
}

// RegisterLaunchEvent reports that the device was launched from the current
// notification. At most one report is ever sent per received notification:
// on success the record is marked sent, and later calls fail with
// ErrAlreadySent without touching the network. Only the standard variant
// supports event logs; the check precedes any storage or network access.
func (t *Tracker) RegisterLaunchEvent(ctx context.Context, sub *model.DeviceSubscription) error {
	if sub == nil || sub.Variant != model.VariantStandard {
		return ErrUnsupportedEnvironment
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	record, err := t.store.GetNotification(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoPendingNotification
		}
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	if record.IsSentEventLog {
		return ErrAlreadySent
	}

	if err := t.channel.RegisterEventLog(ctx, sub, record.NotificationID, t.now().Unix()); err != nil {
		// Record stays pending; a later call may retry.
		return fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}

	record.IsSentEventLog = true
	if err := t.store.PutNotification(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return nil
}
