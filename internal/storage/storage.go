package storage

import (
	"context"

	"github.com/INFOCITY/richflyer-webpush/internal/model"
)

// TokenStore persists the single cached auth token. The slot is global and
// last-write-wins; it is not namespaced by device identity.
type TokenStore interface {
	GetToken(ctx context.Context) (*model.AuthToken, error)
	PutToken(ctx context.Context, token *model.AuthToken) error
	DeleteToken(ctx context.Context) error
}

// NotificationStore persists the single last-received notification record.
// Writes always replace the whole record.
type NotificationStore interface {
	GetNotification(ctx context.Context) (*model.NotificationRecord, error)
	PutNotification(ctx context.Context, record *model.NotificationRecord) error
	DeleteNotification(ctx context.Context) error
}

// Store combines both persisted slots behind one backing database.
type Store interface {
	TokenStore
	NotificationStore
	Close() error
}
