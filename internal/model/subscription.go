package model

import "encoding/base64"

// Variant identifies which push mechanism produced a subscription.
type Variant string

const (
	// VariantStandard is the W3C Push API mechanism (endpoint + key material).
	VariantStandard Variant = "webpush"
	// VariantSafari is Apple's website-push mechanism (device token).
	VariantSafari Variant = "safari"
)

// StandardPush carries the subscription material returned by the Push API.
// Auth and P256DH hold the raw key bytes exactly as exported by the browser.
type StandardPush struct {
	Endpoint string `json:"endpoint"`
	Auth     []byte `json:"auth"`
	P256DH   []byte `json:"p256dh"`
}

// SafariPush carries the device token issued through Apple's website-push
// permission flow together with the website push id it was granted for.
type SafariPush struct {
	DeviceToken   string `json:"deviceToken"`
	WebsitePushID string `json:"websitePushId"`
}

// DeviceSubscription is a tagged union over the two subscription mechanisms.
// Exactly one of Standard/Safari is set, selected by Variant. The variant is
// fixed by platform capability when the subscription is obtained; callers do
// not choose it per call.
type DeviceSubscription struct {
	Variant  Variant       `json:"variant"`
	Standard *StandardPush `json:"standard,omitempty"`
	Safari   *SafariPush   `json:"safari,omitempty"`
}

// NewStandardSubscription wraps Push API subscription material.
func NewStandardSubscription(endpoint string, auth, p256dh []byte) *DeviceSubscription {
	return &DeviceSubscription{
		Variant:  VariantStandard,
		Standard: &StandardPush{Endpoint: endpoint, Auth: auth, P256DH: p256dh},
	}
}

// NewSafariSubscription wraps a Safari device token.
func NewSafariSubscription(deviceToken, websitePushID string) *DeviceSubscription {
	return &DeviceSubscription{
		Variant: VariantSafari,
		Safari:  &SafariPush{DeviceToken: deviceToken, WebsitePushID: websitePushID},
	}
}

// EncodedAuth returns the auth secret in the URL-safe base64 form the backend
// expects (padding retained, matching the browser-side btoa transform).
func (s *StandardPush) EncodedAuth() string {
	return base64.URLEncoding.EncodeToString(s.Auth)
}

// EncodedP256DH returns the p256dh key in URL-safe base64 form.
func (s *StandardPush) EncodedP256DH() string {
	return base64.URLEncoding.EncodeToString(s.P256DH)
}
