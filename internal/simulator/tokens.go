package simulator

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer mints and validates the short-lived id_token credentials the
// simulator hands out, and checks service keys.
type TokenIssuer struct {
	secret     []byte
	ttl        time.Duration
	serviceKey string
}

// Claims is the id_token payload.
type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// NewTokenIssuer builds a TokenIssuer from config.
func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &TokenIssuer{
		secret:     []byte(cfg.Auth.JWTSecret),
		ttl:        ttl,
		serviceKey: strings.TrimSpace(cfg.Service.Key),
	}
}

// Issue signs a fresh token for the device.
func (t *TokenIssuer) Issue(deviceID string) (string, error) {
	now := time.Now()
	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses a token and returns its claims if valid. Expired or
// malformed tokens return an error; callers answer those with a 401.
func (t *TokenIssuer) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := parsed.Claims.(*Claims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// MatchServiceKey checks the X-Service-Key header value. The configured key
// may be a bcrypt hash instead of the plaintext key.
func (t *TokenIssuer) MatchServiceKey(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.HasPrefix(t.serviceKey, "$2a$") || strings.HasPrefix(t.serviceKey, "$2b$") || strings.HasPrefix(t.serviceKey, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(t.serviceKey), []byte(input)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(input), []byte(t.serviceKey)) == 1
}
