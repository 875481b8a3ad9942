package richflyer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/storage"
)

// Notification is the last notification received by the host's worker
// context. Only one is kept; a newly received notification overwrites the
// previous one unconditionally.
type Notification struct {
	NotificationID   string
	Title            string
	Body             string
	ExtendedProperty string
	Clicked          bool
	// ReceivedDate is epoch seconds at intake time.
	ReceivedDate int64
	// SentEventLog reports whether the launch event was already delivered.
	SentEventLog bool
}

// StoreNotification records a freshly received notification, replacing the
// previous record. Called from the host's push-received handler. The
// received date is stamped here and the event-log flag starts cleared.
func (c *Client) StoreNotification(ctx context.Context, n Notification) error {
	record := &model.NotificationRecord{
		NotificationID:        n.NotificationID,
		Title:                 n.Title,
		Body:                  n.Body,
		ExtendedProperty:      n.ExtendedProperty,
		IsClickedNotification: n.Clicked,
		ReceivedDate:          time.Now().Unix(),
		IsSentEventLog:        false,
	}
	if err := c.store.PutNotification(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// MarkNotificationClicked flags the current notification as opened by the
// user. Called from the host's notification-click handler.
func (c *Client) MarkNotificationClicked(ctx context.Context) error {
	record, err := c.store.GetNotification(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoPendingNotification
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	record.IsClickedNotification = true
	if err := c.store.PutNotification(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// LastNotification returns the most recently received notification, or
// ErrNoPendingNotification if none was recorded.
func (c *Client) LastNotification(ctx context.Context) (*Notification, error) {
	record, err := c.store.GetNotification(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoPendingNotification
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return &Notification{
		NotificationID:   record.NotificationID,
		Title:            record.Title,
		Body:             record.Body,
		ExtendedProperty: record.ExtendedProperty,
		Clicked:          record.IsClickedNotification,
		ReceivedDate:     record.ReceivedDate,
		SentEventLog:     record.IsSentEventLog,
	}, nil
}

// ClearLastNotification removes the stored notification record.
func (c *Client) ClearLastNotification(ctx context.Context) error {
	if err := c.store.DeleteNotification(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
