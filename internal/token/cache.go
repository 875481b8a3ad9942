// Package token acquires, persists and invalidates the bearer credential
// used by authenticated backend calls.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/apiclient"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/storage"
)

// ErrIssuanceFailed indicates a token could not be obtained, including after
// the single re-registration retry.
var ErrIssuanceFailed = errors.New("auth token issuance failed")

// Cache is a best-effort cache over the single persisted token slot. The
// slot is shared by all callers and last-write-wins; the mutex serializes
// refreshes within this process, but a token freshly acquired here can still
// be rejected with a 401 by the next call. Callers bound their recovery to
// one retry.
type Cache struct {
	mu     sync.Mutex
	store  storage.TokenStore
	api    *apiclient.Client
	domain string
}

// NewCache builds a Cache. The domain is needed when issuance triggers a
// device re-registration.
func NewCache(store storage.TokenStore, api *apiclient.Client, domain string) *Cache {
	return &Cache{store: store, api: api, domain: domain}
}

// Acquire returns the persisted token if present, otherwise issues a fresh
// one for the device and persists it.
func (c *Cache) Acquire(ctx context.Context, sub *model.DeviceSubscription, deviceID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, err := c.store.GetToken(ctx)
	if err == nil {
		return cached.Value, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return c.issueLocked(ctx, sub, deviceID)
}

// Refresh discards the persisted token and issues a fresh one. Used after a
// dependent call discovered the cached token is no longer accepted.
func (c *Cache) Refresh(ctx context.Context, sub *model.DeviceSubscription, deviceID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteToken(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return c.issueLocked(ctx, sub, deviceID)
}

// Invalidate removes the persisted token without issuing a new one.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.DeleteToken(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// Delete removes the persisted token. Called on unsubscribe.
func (c *Cache) Delete(ctx context.Context) error {
	return c.Invalidate(ctx)
}

func (c *Cache) issueLocked(ctx context.Context, sub *model.DeviceSubscription, deviceID string) (string, error) {
	value, err := c.api.IssueAuthToken(ctx, deviceID)
	if err != nil {
		if !apiclient.IsNotRegistered(err) {
			return "", fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
		}
		// The backend forgot the device: re-activate it and retry issuance
		// exactly once.
		if err := c.activate(ctx, sub); err != nil {
			return "", fmt.Errorf("%w: re-register device: %w", ErrIssuanceFailed, err)
		}
		value, err = c.api.IssueAuthToken(ctx, deviceID)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
		}
	}
	token := &model.AuthToken{Value: value, SavedAt: time.Now().UTC()}
	if err := c.store.PutToken(ctx, token); err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return value, nil
}

func (c *Cache) activate(ctx context.Context, sub *model.DeviceSubscription) error {
	if sub == nil {
		return fmt.Errorf("no subscription to re-register")
	}
	switch sub.Variant {
	case model.VariantStandard:
		return c.api.ActivateDevice(ctx, sub.Standard.Endpoint, sub.Standard.EncodedP256DH(), sub.Standard.EncodedAuth(), c.domain)
	case model.VariantSafari:
		return c.api.ActivateSafariDevice(ctx, sub.Safari.DeviceToken, sub.Safari.WebsitePushID, c.domain)
	default:
		return fmt.Errorf("unknown variant %q", sub.Variant)
	}
}
