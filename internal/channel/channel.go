// Package channel executes authenticated backend operations through a
// uniform retry-on-expiry wrapper.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/INFOCITY/richflyer-webpush/internal/apiclient"
	"github.com/INFOCITY/richflyer-webpush/internal/device"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/token"
)

// ErrOperationFailed indicates an authenticated call failed after the single
// 401 retry, or failed immediately with a non-401 status.
var ErrOperationFailed = errors.New("operation failed")

// Operation is one authenticated backend call, invoked with the resolved
// device identifier and a bearer token.
type Operation func(ctx context.Context, deviceID, authToken string) error

// Channel dispatches segment and event-log calls for either subscription
// variant through one retry contract: acquire a token, run the call, and on
// a 401 invalidate, reacquire and retry exactly once. Any other failure is
// terminal immediately.
type Channel struct {
	api      *apiclient.Client
	tokens   *token.Cache
	resolver *device.Resolver
}

// New builds a Channel.
func New(api *apiclient.Client, tokens *token.Cache, resolver *device.Resolver) *Channel {
	return &Channel{api: api, tokens: tokens, resolver: resolver}
}

// UpdateSegments replaces the device's segment attributes. Values must be
// normalized to strings by the caller.
func (ch *Channel) UpdateSegments(ctx context.Context, sub *model.DeviceSubscription, segments map[string]string) error {
	return ch.callAuthenticated(ctx, sub, func(ctx context.Context, deviceID, authToken string) error {
		return ch.api.UpdateSegments(ctx, deviceID, authToken, segments)
	})
}

// RegisterEventLog reports a launched-from-notification event.
func (ch *Channel) RegisterEventLog(ctx context.Context, sub *model.DeviceSubscription, notificationID string, eventDate int64) error {
	return ch.callAuthenticated(ctx, sub, func(ctx context.Context, deviceID, authToken string) error {
		return ch.api.RegisterEventLog(ctx, deviceID, authToken, notificationID, eventDate)
	})
}

func (ch *Channel) callAuthenticated(ctx context.Context, sub *model.DeviceSubscription, op Operation) error {
	// Identity first: a Safari lookup failure must surface before any token
	// is requested.
	deviceID, err := ch.resolver.Resolve(ctx, sub)
	if err != nil {
		return err
	}
	authToken, err := ch.tokens.Acquire(ctx, sub, deviceID)
	if err != nil {
		return err
	}
	err = op(ctx, deviceID, authToken)
	if err == nil {
		return nil
	}
	if !apiclient.IsUnauthorized(err) {
		return fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}
	// The token expired or was revoked: refresh and retry exactly once.
	authToken, err = ch.tokens.Refresh(ctx, sub, deviceID)
	if err != nil {
		return err
	}
	if err := op(ctx, deviceID, authToken); err != nil {
		return fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}
	return nil
}
