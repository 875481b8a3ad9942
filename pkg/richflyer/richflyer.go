// Package richflyer is the client SDK for the RichFlyer web-push service.
// It maintains a browser device's authenticated relationship with the
// backend: device registration, bearer-token acquisition and refresh,
// segment updates, and at-most-once launch-event reporting.
package richflyer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/apiclient"
	"github.com/INFOCITY/richflyer-webpush/internal/channel"
	"github.com/INFOCITY/richflyer-webpush/internal/device"
	"github.com/INFOCITY/richflyer-webpush/internal/eventlog"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/segment"
	"github.com/INFOCITY/richflyer-webpush/internal/storage"
	"github.com/INFOCITY/richflyer-webpush/internal/storage/bolt"
	"github.com/INFOCITY/richflyer-webpush/internal/token"
)

// DefaultAPIBaseURL is the production RichFlyer API origin.
const DefaultAPIBaseURL = "https://api.richflyer.net"

// Segments maps attribute names to typed values: strings, numbers, booleans
// or time.Time. Unsupported value types are silently omitted when sent.
type Segments map[string]any

// Config carries the caller-supplied initialization values. ServiceKey and
// Domain are required; WebsitePushID is only needed for Safari hosts.
type Config struct {
	ServiceKey    string
	Domain        string
	WebsitePushID string

	// APIBaseURL overrides the backend origin; defaults to DefaultAPIBaseURL.
	APIBaseURL string
	// RequestTimeout bounds each HTTP call; defaults to 10s.
	RequestTimeout time.Duration
	// StoragePath locates the embedded store; defaults to
	// ./data/richflyer.db.
	StoragePath string
}

// Client is the SDK entry point. It is safe for concurrent use; the token
// slot and the notification record remain best-effort, last-write-wins
// resources as described on the component packages.
type Client struct {
	cfg      Config
	api      *apiclient.Client
	store    storage.Store
	tokens   *token.Cache
	resolver *device.Resolver
	channel  *channel.Channel
	tracker  *eventlog.Tracker

	mu  sync.RWMutex
	sub *model.DeviceSubscription
}

// New validates cfg, opens the embedded store, and wires the SDK.
func New(cfg Config) (*Client, error) {
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("service key is required")
	}
	if cfg.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./data/richflyer.db"
	}

	api, err := apiclient.New(cfg.APIBaseURL, cfg.ServiceKey, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	store, err := bolt.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	resolver := device.NewResolver(api)
	tokens := token.NewCache(store, api, cfg.Domain)
	ch := channel.New(api, tokens, resolver)

	return &Client{
		cfg:      cfg,
		api:      api,
		store:    store,
		tokens:   tokens,
		resolver: resolver,
		channel:  ch,
		tracker:  eventlog.NewTracker(store, ch),
	}, nil
}

// Close releases the embedded store.
func (c *Client) Close() error {
	return c.store.Close()
}

// SetStandardSubscription installs a Push API subscription as the active
// device. The auth and p256dh arguments are the raw key bytes exported by
// the browser.
func (c *Client) SetStandardSubscription(endpoint string, auth, p256dh []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sub = model.NewStandardSubscription(endpoint, auth, p256dh)
}

// SetSafariSubscription installs a Safari device token as the active device.
// The website push id comes from the configuration.
func (c *Client) SetSafariSubscription(deviceToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sub = model.NewSafariSubscription(deviceToken, c.cfg.WebsitePushID)
}

// HasSubscription reports whether a subscription is installed.
func (c *Client) HasSubscription() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub != nil
}

func (c *Client) subscription() (*model.DeviceSubscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sub == nil {
		return nil, ErrNoSubscription
	}
	return c.sub, nil
}

// ServerPublicKey fetches the backend's VAPID public key. Hosts use it to
// subscribe through the browser's push manager.
func (c *Client) ServerPublicKey(ctx context.Context) (string, error) {
	return c.api.PublicKey(ctx)
}

// ActivateDevice registers the active subscription with the backend.
func (c *Client) ActivateDevice(ctx context.Context) error {
	sub, err := c.subscription()
	if err != nil {
		return err
	}
	switch sub.Variant {
	case model.VariantStandard:
		return c.api.ActivateDevice(ctx, sub.Standard.Endpoint, sub.Standard.EncodedP256DH(), sub.Standard.EncodedAuth(), c.cfg.Domain)
	case model.VariantSafari:
		return c.api.ActivateSafariDevice(ctx, sub.Safari.DeviceToken, sub.Safari.WebsitePushID, c.cfg.Domain)
	default:
		return fmt.Errorf("unknown variant %q", sub.Variant)
	}
}

// EnsureAuthToken makes sure a bearer token is cached, issuing one if the
// slot is empty. Authenticated calls do this on demand; hosts only need it
// to front-load the first credential fetch.
func (c *Client) EnsureAuthToken(ctx context.Context) error {
	sub, err := c.subscription()
	if err != nil {
		return err
	}
	deviceID, err := c.resolver.Resolve(ctx, sub)
	if err != nil {
		return err
	}
	_, err = c.tokens.Acquire(ctx, sub, deviceID)
	return err
}

// UpdateSegments normalizes the attributes and replaces the device's
// segment set on the backend.
func (c *Client) UpdateSegments(ctx context.Context, segments Segments) error {
	sub, err := c.subscription()
	if err != nil {
		return err
	}
	return c.channel.UpdateSegments(ctx, sub, segment.Normalize(segment.Set(segments)))
}

// RegisterLaunchEvent reports that the host was launched from the most
// recently received notification. The report is sent at most once per
// notification; see the error sentinels for the short-circuit outcomes.
func (c *Client) RegisterLaunchEvent(ctx context.Context) error {
	sub, err := c.subscription()
	if err != nil {
		return err
	}
	return c.tracker.RegisterLaunchEvent(ctx, sub)
}

// Unsubscribe deletes the cached auth token and forgets the active
// subscription. The host remains responsible for unsubscribing from the
// browser's push manager.
func (c *Client) Unsubscribe(ctx context.Context) error {
	if err := c.tokens.Delete(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.sub = nil
	c.mu.Unlock()
	return nil
}
