package simulator

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/INFOCITY/richflyer-webpush/internal/config"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
	webpush "github.com/SherClockHolmes/webpush-go"
)

// Pusher delivers real Web Push messages to registered standard devices
// using the simulator's VAPID key pair.
type Pusher struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewPusher builds a Pusher from config.
func NewPusher(cfg *config.Config) *Pusher {
	return &Pusher{
		publicKey:  cfg.VAPID.PublicKey,
		privateKey: cfg.VAPID.PrivateKey,
		subscriber: cfg.VAPID.Subscriber,
	}
}

// PublicKey returns the VAPID public key served on the key endpoint.
func (p *Pusher) PublicKey() string {
	return p.publicKey
}

// Send pushes payload to one standard device.
func (p *Pusher) Send(ctx context.Context, device *Device, payload []byte) error {
	if device.Variant != model.VariantStandard {
		return fmt.Errorf("device %s is not a web-push device", device.ID)
	}
	sub := &webpush.Subscription{
		Endpoint: device.Endpoint,
		Keys: webpush.Keys{
			Auth:   device.Auth,
			P256dh: device.P256DH,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		Subscriber:      p.subscriber,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             60,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint status %s", resp.Status)
	}
	return nil
}
