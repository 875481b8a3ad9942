package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.Store = (*Store)(nil)

var (
	bucketAuth          = []byte("auth_tokens")
	bucketNotifications = []byte("notifications")

	// Fixed record names: each bucket holds at most one row.
	keyAuthToken        = []byte("rfAuthKey")
	keyLastNotification = []byte("lastNotification")
)

// Store is a BoltDB-backed Store implementation. It plays the role the
// browser's local storage plays for the original client: one slot for the
// auth token, one for the last-received notification.
type Store struct {
	db *bolt.DB
}

// New opens (creating if necessary) the Bolt store and declares its buckets.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAuth); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketNotifications)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetToken returns the cached auth token or storage.ErrNotFound.
func (s *Store) GetToken(ctx context.Context) (*model.AuthToken, error) {
	var token model.AuthToken
	if err := s.get(ctx, bucketAuth, keyAuthToken, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// PutToken overwrites the single token slot.
func (s *Store) PutToken(ctx context.Context, token *model.AuthToken) error {
	return s.put(ctx, bucketAuth, keyAuthToken, token)
}

// DeleteToken removes the cached token. Deleting an absent token is not an
// error.
func (s *Store) DeleteToken(ctx context.Context) error {
	return s.delete(ctx, bucketAuth, keyAuthToken)
}

// GetNotification returns the last-received notification record or
// storage.ErrNotFound.
func (s *Store) GetNotification(ctx context.Context) (*model.NotificationRecord, error) {
	var record model.NotificationRecord
	if err := s.get(ctx, bucketNotifications, keyLastNotification, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PutNotification replaces the notification record wholesale.
func (s *Store) PutNotification(ctx context.Context, record *model.NotificationRecord) error {
	return s.put(ctx, bucketNotifications, keyLastNotification, record)
}

// DeleteNotification clears the notification record.
func (s *Store) DeleteNotification(ctx context.Context) error {
	return s.delete(ctx, bucketNotifications, keyLastNotification)
}

func (s *Store) get(ctx context.Context, bucket, key []byte, out any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(key); v != nil {
			raw = append(raw, v...)
		}
		return nil
	}); err != nil {
		return err
	}
	if raw == nil {
		return storage.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) put(ctx context.Context, bucket, key []byte, value any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, payload)
	})
}

func (s *Store) delete(ctx context.Context, bucket, key []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}
