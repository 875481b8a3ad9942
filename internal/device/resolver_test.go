package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/apiclient"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
)

func TestResolveStandardIsPure(t *testing.T) {
	auth, err := base64.URLEncoding.DecodeString("AAAA")
	if err != nil {
		t.Fatal(err)
	}
	sub := model.NewStandardSubscription("https://push.example.com/ep", auth, []byte{1, 2, 3})

	// No API client: the standard path must never perform I/O.
	resolver := NewResolver(nil)
	for i := 0; i < 3; i++ {
		id, err := resolver.Resolve(context.Background(), sub)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if id != "AAAA" {
			t.Fatalf("identifier = %q, want AAAA", id)
		}
	}
}

func TestResolveStandardEncodesURLSafe(t *testing.T) {
	// 0xfb 0xff 0xff encodes to "-___": '-' and '_' replace '+' and '/'.
	sub := model.NewStandardSubscription("https://push.example.com/ep", []byte{0xfb, 0xff, 0xff}, nil)
	id, err := NewResolver(nil).Resolve(context.Background(), sub)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "-___" {
		t.Fatalf("identifier = %q, want -___", id)
	}
}

func TestResolveStandardWithoutAuthSecret(t *testing.T) {
	sub := model.NewStandardSubscription("https://push.example.com/ep", nil, nil)
	if _, err := NewResolver(nil).Resolve(context.Background(), sub); !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("err = %v, want ErrIdentityUnavailable", err)
	}
}

func TestResolveSafari(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/devices/safari/tok-1/id" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"device_id": "dev-42"})
	}))
	defer server.Close()

	resolver := NewResolver(newTestClient(t, server.URL))
	id, err := resolver.Resolve(context.Background(), model.NewSafariSubscription("tok-1", "web.com.example"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "dev-42" {
		t.Fatalf("identifier = %q, want dev-42", id)
	}
}

func TestResolveSafariLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"code": 3, "message": "device not registered"})
	}))
	defer server.Close()

	resolver := NewResolver(newTestClient(t, server.URL))
	_, err := resolver.Resolve(context.Background(), model.NewSafariSubscription("tok-1", "web.com.example"))
	if !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("err = %v, want ErrIdentityUnavailable", err)
	}
}

func TestResolveSafariUndefinedSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"device_id": "undefined"})
	}))
	defer server.Close()

	resolver := NewResolver(newTestClient(t, server.URL))
	_, err := resolver.Resolve(context.Background(), model.NewSafariSubscription("tok-1", "web.com.example"))
	if !errors.Is(err, ErrIdentityUnavailable) {
		t.Fatalf("err = %v, want ErrIdentityUnavailable", err)
	}
}

func newTestClient(t *testing.T, baseURL string) *apiclient.Client {
	t.Helper()
	client, err := apiclient.New(baseURL, "sk-test", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return client
}
