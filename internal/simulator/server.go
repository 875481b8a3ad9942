// Package simulator is a local stand-in for the RichFlyer backend. It
// implements the device, token, segment and event-log endpoints with the
// production status contract (200 on success, 401 on expired tokens, 404
// code 3 for unregistered devices) so SDK integrations can be exercised
// end to end without the real service.
package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/INFOCITY/richflyer-webpush/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Backend error codes carried in the JSON error envelope.
const (
	codeBadRequest    = 1
	codeUnauthorized  = 2
	codeNotRegistered = 3
)

// Server wires the simulator's HTTP handlers.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	registry *Registry
	issuer   *TokenIssuer
	pusher   *Pusher
}

// New builds a Server.
func New(cfg *config.Config, registry *Registry, issuer *TokenIssuer, pusher *Pusher) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		AppName:      "richflyer-simulator",
	})
	s := &Server{
		app:      app,
		cfg:      cfg,
		registry: registry,
		issuer:   issuer,
		pusher:   pusher,
	}
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/v1/webpush/key", s.handlePublicKey)

	v1 := s.app.Group("/v1", s.requireServiceKey)
	v1.Post("/devices/webpush", s.handleActivateWebpush)
	v1.Post("/devices/safari", s.handleActivateSafari)
	v1.Get("/devices/safari/:token/id", s.handleSafariDeviceID)
	v1.Post("/devices/:id/authentication-tokens", s.handleIssueToken)
	v1.Put("/devices/:id/segments", s.requireBearer(s.handleUpdateSegments))
	v1.Post("/devices/:id/event-logs", s.requireBearer(s.handleEventLog))

	// Inspection and delivery helpers, not part of the production surface.
	v1.Get("/status", s.handleStatus)
	v1.Get("/devices", s.handleListDevices)
	v1.Get("/event-logs", s.handleListEvents)
	v1.Post("/notifications", s.handleBroadcast)
}

func (s *Server) requireServiceKey(c *fiber.Ctx) error {
	if !s.issuer.MatchServiceKey(c.Get("X-Service-Key")) {
		return apiError(c, http.StatusUnauthorized, codeUnauthorized, "invalid service key")
	}
	return c.Next()
}

func (s *Server) requireBearer(next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if raw == "" || raw == c.Get("Authorization") {
			return apiError(c, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		}
		claims, err := s.issuer.Validate(raw)
		if err != nil {
			return apiError(c, http.StatusUnauthorized, codeUnauthorized, "token expired or invalid")
		}
		if deviceID := param(c, "id"); deviceID != "" && claims.DeviceID != deviceID {
			return apiError(c, http.StatusUnauthorized, codeUnauthorized, "token issued for another device")
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handlePublicKey(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).SendString(s.pusher.PublicKey())
}

func (s *Server) handleActivateWebpush(c *fiber.Ctx) error {
	var req struct {
		Endpoint string `json:"endpoint"`
		P256DH   string `json:"p256dh"`
		Auth     string `json:"auth"`
		Domain   string `json:"domain"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "malformed body")
	}
	if req.Endpoint == "" || req.Auth == "" || req.P256DH == "" {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "endpoint, p256dh and auth are required")
	}
	s.registry.RegisterStandard(req.Endpoint, req.P256DH, req.Auth, req.Domain)
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

func (s *Server) handleActivateSafari(c *fiber.Ctx) error {
	var req struct {
		DeviceToken   string `json:"device_token"`
		WebsitePushID string `json:"website_push_id"`
		Domain        string `json:"domain"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "malformed body")
	}
	if req.DeviceToken == "" {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "device_token is required")
	}
	s.registry.RegisterSafari(req.DeviceToken, req.WebsitePushID, req.Domain)
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

func (s *Server) handleSafariDeviceID(c *fiber.Ctx) error {
	id, ok := s.registry.SafariID(param(c, "token"))
	if !ok {
		return apiError(c, http.StatusNotFound, codeNotRegistered, "device not registered")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"device_id": id})
}

func (s *Server) handleIssueToken(c *fiber.Ctx) error {
	deviceID := param(c, "id")
	if _, ok := s.registry.Lookup(deviceID); !ok {
		return apiError(c, http.StatusNotFound, codeNotRegistered, "device not registered")
	}
	token, err := s.issuer.Issue(deviceID)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, codeBadRequest, "token signing failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"id_token": token})
}

func (s *Server) handleUpdateSegments(c *fiber.Ctx) error {
	var req struct {
		Segments map[string]string `json:"segments"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "malformed body")
	}
	if !s.registry.SetSegments(param(c, "id"), req.Segments) {
		return apiError(c, http.StatusNotFound, codeNotRegistered, "device not registered")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

func (s *Server) handleEventLog(c *fiber.Ctx) error {
	deviceID := param(c, "id")
	if _, ok := s.registry.Lookup(deviceID); !ok {
		return apiError(c, http.StatusNotFound, codeNotRegistered, "device not registered")
	}
	var req struct {
		NotificationID string `json:"notification_id"`
		DeviceType     string `json:"device_type"`
		EventDate      int64  `json:"event_date"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "malformed body")
	}
	if req.NotificationID == "" {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "notification_id is required")
	}
	s.registry.AppendEvent(EventLog{
		DeviceID:       deviceID,
		NotificationID: req.NotificationID,
		DeviceType:     req.DeviceType,
		EventDate:      req.EventDate,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	standard, safari := s.registry.Counts()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":         "ok",
		"webpushDevices": standard,
		"safariDevices":  safari,
		"eventLogs":      len(s.registry.Events()),
	})
}

func (s *Server) handleListDevices(c *fiber.Ctx) error {
	devices := s.registry.Devices()
	views := make([]fiber.Map, 0, len(devices))
	for _, device := range devices {
		views = append(views, fiber.Map{
			"id":       maskValue(device.ID),
			"variant":  device.Variant,
			"endpoint": maskValue(device.Endpoint),
			"segments": device.Segments,
		})
	}
	return c.Status(http.StatusOK).JSON(views)
}

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(s.registry.Events())
}

// handleBroadcast pushes a notification to every registered standard device.
func (s *Server) handleBroadcast(c *fiber.Ctx) error {
	var req struct {
		Title            string `json:"title"`
		Body             string `json:"body"`
		ExtendedProperty string `json:"extended_property"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "malformed body")
	}
	if strings.TrimSpace(req.Body) == "" {
		return apiError(c, http.StatusBadRequest, codeBadRequest, "body is required")
	}

	notificationID := uuid.NewString()
	payload, err := json.Marshal(fiber.Map{
		"notification_id":   notificationID,
		"title":             req.Title,
		"body":              req.Body,
		"extended_property": req.ExtendedProperty,
	})
	if err != nil {
		return apiError(c, http.StatusInternalServerError, codeBadRequest, "encode payload")
	}

	type result struct {
		DeviceID string `json:"deviceId"`
		Status   string `json:"status"`
		Message  string `json:"message,omitempty"`
	}
	var (
		results []result
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	for _, device := range s.registry.Devices() {
		if device.Endpoint == "" {
			continue
		}
		device := device
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := result{DeviceID: maskValue(device.ID), Status: "SUCCESS"}
			if err := s.pusher.Send(c.Context(), device, payload); err != nil {
				res.Status = "FAILED"
				res.Message = err.Error()
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"notification_id": notificationID,
		"results":         results,
	})
}

func apiError(c *fiber.Ctx, status, code int, message string) error {
	return c.Status(status).JSON(fiber.Map{"code": code, "message": message})
}

// param returns a path parameter with percent-encoding undone; device ids
// carry base64 padding that arrives escaped.
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}

func maskValue(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 8 {
		return value
	}
	return value[:8] + strings.Repeat("*", 4)
}
