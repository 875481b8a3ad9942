package simulator

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/model"
)

// Device is a registered device as the simulator sees it. Key material is
// stored in its URL-safe base64 wire form.
type Device struct {
	ID            string        `json:"id"`
	Variant       model.Variant `json:"variant"`
	Endpoint      string        `json:"endpoint,omitempty"`
	P256DH        string        `json:"p256dh,omitempty"`
	Auth          string        `json:"auth,omitempty"`
	DeviceToken   string        `json:"deviceToken,omitempty"`
	WebsitePushID string        `json:"websitePushId,omitempty"`
	Domain        string        `json:"domain,omitempty"`

	Segments  map[string]string `json:"segments,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// EventLog records one launch-event registration.
type EventLog struct {
	DeviceID       string    `json:"deviceId"`
	NotificationID string    `json:"notificationId"`
	DeviceType     string    `json:"deviceType"`
	EventDate      int64     `json:"eventDate"`
	LoggedAt       time.Time `json:"loggedAt"`
}

// Registry is the simulator's in-memory device and event-log store.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Device
	safariID map[string]string // device token -> issued id
	events   []EventLog
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:  make(map[string]*Device),
		safariID: make(map[string]string),
	}
}

// RegisterStandard upserts a standard web-push device. The device id is the
// auth secret in its encoded form, mirroring the production backend.
func (r *Registry) RegisterStandard(endpoint, p256dh, auth, domain string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	device, ok := r.devices[auth]
	if !ok {
		device = &Device{ID: auth, Variant: model.VariantStandard, CreatedAt: now}
		r.devices[auth] = device
	}
	device.Endpoint = endpoint
	device.P256DH = p256dh
	device.Auth = auth
	device.Domain = domain
	device.UpdatedAt = now
	return device
}

// RegisterSafari upserts a Safari device, issuing a server-side id on first
// registration.
func (r *Registry) RegisterSafari(deviceToken, websitePushID, domain string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	id, ok := r.safariID[deviceToken]
	if !ok {
		id = randomID(16)
		r.safariID[deviceToken] = id
	}
	device, ok := r.devices[id]
	if !ok {
		device = &Device{ID: id, Variant: model.VariantSafari, CreatedAt: now}
		r.devices[id] = device
	}
	device.DeviceToken = deviceToken
	device.WebsitePushID = websitePushID
	device.Domain = domain
	device.UpdatedAt = now
	return device
}

// Lookup returns a device by id.
func (r *Registry) Lookup(id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[id]
	return device, ok
}

// SafariID returns the issued id for a Safari device token.
func (r *Registry) SafariID(deviceToken string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.safariID[deviceToken]
	return id, ok
}

// SetSegments replaces a device's segment attributes.
func (r *Registry) SetSegments(id string, segments map[string]string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[id]
	if !ok {
		return false
	}
	device.Segments = segments
	device.UpdatedAt = time.Now().UTC()
	return true
}

// AppendEvent stores a launch-event registration.
func (r *Registry) AppendEvent(event EventLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.LoggedAt = time.Now().UTC()
	r.events = append(r.events, event)
}

// Events returns a copy of all logged events.
func (r *Registry) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

// Devices returns a copy of all registered devices.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, device := range r.devices {
		copied := *device
		out = append(out, &copied)
	}
	return out
}

// Counts returns the number of standard and Safari devices.
func (r *Registry) Counts() (standard, safari int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, device := range r.devices {
		if device.Variant == model.VariantSafari {
			safari++
		} else {
			standard++
		}
	}
	return standard, safari
}

func randomID(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
