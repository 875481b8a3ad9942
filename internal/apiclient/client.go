package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const apiVersion = "2017-04-01"

// Client is a thin wrapper over the RichFlyer HTTP API. It performs no
// retries of its own; retry policy lives with the callers.
type Client struct {
	baseURL    *url.URL
	serviceKey string
	http       *http.Client
}

// New creates a RichFlyer API client.
func New(rawURL, serviceKey string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if serviceKey == "" {
		return nil, fmt.Errorf("service key is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("base url must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return &Client{
		baseURL:    parsed,
		serviceKey: serviceKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// ActivateDevice registers a standard web-push subscription with the backend.
// The p256dh and auth values are URL-safe base64.
func (c *Client) ActivateDevice(ctx context.Context, endpoint, p256dh, auth, domain string) error {
	body := map[string]string{
		"endpoint": endpoint,
		"p256dh":   p256dh,
		"auth":     auth,
		"domain":   domain,
	}
	return c.do(ctx, http.MethodPost, "/v1/devices/webpush", "", body, nil)
}

// ActivateSafariDevice registers a Safari device token with the backend.
func (c *Client) ActivateSafariDevice(ctx context.Context, deviceToken, websitePushID, domain string) error {
	body := map[string]string{
		"device_token":    deviceToken,
		"website_push_id": websitePushID,
		"domain":          domain,
	}
	return c.do(ctx, http.MethodPost, "/v1/devices/safari", "", body, nil)
}

// PublicKey fetches the server's VAPID public key. The response body is the
// bare key, not JSON.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/v1/webpush/key"), nil)
	if err != nil {
		return "", err
	}
	c.decorate(req, "")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// SafariDeviceID looks up the server-issued device id for a Safari device
// token. The literal string "undefined" in the response is treated as a
// decode failure, never as a valid identifier.
func (c *Client) SafariDeviceID(ctx context.Context, deviceToken string) (string, error) {
	var payload struct {
		DeviceID string `json:"device_id"`
	}
	p := "/v1/devices/safari/" + url.PathEscape(deviceToken) + "/id"
	if err := c.do(ctx, http.MethodGet, p, "", nil, &payload); err != nil {
		return "", err
	}
	if payload.DeviceID == "" || payload.DeviceID == "undefined" {
		return "", fmt.Errorf("device id missing from response")
	}
	return payload.DeviceID, nil
}

// IssueAuthToken requests a fresh bearer token for the device.
func (c *Client) IssueAuthToken(ctx context.Context, deviceID string) (string, error) {
	var payload struct {
		IDToken string `json:"id_token"`
	}
	p := "/v1/devices/" + url.PathEscape(deviceID) + "/authentication-tokens"
	if err := c.do(ctx, http.MethodPost, p, "", map[string]string{}, &payload); err != nil {
		return "", err
	}
	if payload.IDToken == "" || payload.IDToken == "undefined" {
		return "", fmt.Errorf("id_token missing from response")
	}
	return payload.IDToken, nil
}

// UpdateSegments replaces the device's segment attributes. Values must
// already be normalized to strings.
func (c *Client) UpdateSegments(ctx context.Context, deviceID, token string, segments map[string]string) error {
	body := map[string]any{
		"segments": segments,
	}
	p := "/v1/devices/" + url.PathEscape(deviceID) + "/segments"
	return c.do(ctx, http.MethodPut, p, token, body, nil)
}

// RegisterEventLog reports a launched-from-notification engagement event.
func (c *Client) RegisterEventLog(ctx context.Context, deviceID, token, notificationID string, eventDate int64) error {
	body := map[string]any{
		"notification_id": notificationID,
		"device_type":     "webpush",
		"event_date":      eventDate,
	}
	p := "/v1/devices/" + url.PathEscape(deviceID) + "/event-logs"
	return c.do(ctx, http.MethodPost, p, token, body, nil)
}

func (c *Client) do(ctx context.Context, method, p, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(p), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	c.decorate(req, token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, p)
	return u.String()
}

func (c *Client) decorate(req *http.Request, token string) {
	req.Header.Set("X-API-Version", apiVersion)
	req.Header.Set("X-Service-Key", c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// BaseURL returns the configured API origin without trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}
