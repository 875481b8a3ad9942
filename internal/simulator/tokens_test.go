package simulator

import (
	"testing"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func issuerWith(t *testing.T, key string, ttl time.Duration) *TokenIssuer {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = ttl
	cfg.Service.Key = key
	return NewTokenIssuer(cfg)
}

func TestIssueAndValidate(t *testing.T) {
	issuer := issuerWith(t, "sk-test", time.Hour)
	token, err := issuer.Issue("AAAA")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.DeviceID != "AAAA" {
		t.Fatalf("device id = %q", claims.DeviceID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := issuerWith(t, "sk-test", -time.Minute)
	token, err := issuer.Issue("AAAA")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Validate(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	issuer := issuerWith(t, "sk-test", time.Hour)
	token, err := issuer.Issue("AAAA")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Validate(token + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestMatchServiceKeyPlain(t *testing.T) {
	issuer := issuerWith(t, "sk-test", time.Hour)
	if !issuer.MatchServiceKey("sk-test") {
		t.Fatal("exact key rejected")
	}
	if issuer.MatchServiceKey("wrong") {
		t.Fatal("wrong key accepted")
	}
	if issuer.MatchServiceKey("") {
		t.Fatal("empty key accepted")
	}
}

func TestMatchServiceKeyBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sk-test"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	issuer := issuerWith(t, string(hash), time.Hour)
	if !issuer.MatchServiceKey("sk-test") {
		t.Fatal("bcrypt-matched key rejected")
	}
	if issuer.MatchServiceKey("wrong") {
		t.Fatal("wrong key accepted against hash")
	}
}
