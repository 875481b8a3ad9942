package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/INFOCITY/richflyer-webpush/internal/apiclient"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
)

// ErrIdentityUnavailable indicates a device identifier could not be derived
// from the subscription.
var ErrIdentityUnavailable = errors.New("device identity unavailable")

// Resolver derives the backend's canonical device identifier from a
// subscription. The identifier is always recomputed, never cached.
type Resolver struct {
	api *apiclient.Client
}

// NewResolver builds a Resolver. The API client is only exercised for the
// Safari variant.
func NewResolver(api *apiclient.Client) *Resolver {
	return &Resolver{api: api}
}

// Resolve produces the device identifier for sub.
//
// For the standard variant this is a pure transform: the URL-safe base64
// encoding of the auth secret. For Safari it requires a lookup round trip
// keyed by the device token; a lookup failure is terminal for this call and
// is not retried here.
func (r *Resolver) Resolve(ctx context.Context, sub *model.DeviceSubscription) (string, error) {
	if sub == nil {
		return "", fmt.Errorf("%w: no subscription", ErrIdentityUnavailable)
	}
	switch sub.Variant {
	case model.VariantStandard:
		if sub.Standard == nil || len(sub.Standard.Auth) == 0 {
			return "", fmt.Errorf("%w: subscription has no auth secret", ErrIdentityUnavailable)
		}
		return sub.Standard.EncodedAuth(), nil
	case model.VariantSafari:
		if sub.Safari == nil || sub.Safari.DeviceToken == "" {
			return "", fmt.Errorf("%w: subscription has no device token", ErrIdentityUnavailable)
		}
		id, err := r.api.SafariDeviceID(ctx, sub.Safari.DeviceToken)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("%w: unknown variant %q", ErrIdentityUnavailable, sub.Variant)
	}
}
