package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/INFOCITY/richflyer-webpush/internal/apiclient"
	"github.com/INFOCITY/richflyer-webpush/internal/device"
	"github.com/INFOCITY/richflyer-webpush/internal/model"
	"github.com/INFOCITY/richflyer-webpush/internal/storage/bolt"
	"github.com/INFOCITY/richflyer-webpush/internal/token"
)

// segmentBackend scripts segment-update responses in order and counts calls.
type segmentBackend struct {
	mu            sync.Mutex
	issueCalls    int
	segmentCalls  int
	lookupCalls   int
	segmentStatus []int // consumed one per segment call; empty means 200
	lookupStatus  int
	issueStatus   int
}

func (b *segmentBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/devices/AAAA/authentication-tokens":
			b.issueCalls++
			if b.issueStatus != 0 && b.issueStatus != http.StatusOK {
				w.WriteHeader(b.issueStatus)
				json.NewEncoder(w).Encode(map[string]any{"code": 9, "message": "issuance rejected"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id_token": "T"})
		case r.Method == http.MethodPut && r.URL.Path == "/v1/devices/AAAA/segments":
			b.segmentCalls++
			status := http.StatusOK
			if len(b.segmentStatus) > 0 {
				status = b.segmentStatus[0]
				b.segmentStatus = b.segmentStatus[1:]
			}
			if status != http.StatusOK {
				w.WriteHeader(status)
				json.NewEncoder(w).Encode(map[string]any{"code": 2, "message": "token expired"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/devices/safari/tok-1/id":
			b.lookupCalls++
			if b.lookupStatus != 0 && b.lookupStatus != http.StatusOK {
				w.WriteHeader(b.lookupStatus)
				json.NewEncoder(w).Encode(map[string]any{"code": 3, "message": "device not registered"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"device_id": "AAAA"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"code": 1, "message": "no such route"})
		}
	})
}

func (b *segmentBackend) counts() (issue, segment, lookup int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueCalls, b.segmentCalls, b.lookupCalls
}

func newTestChannel(t *testing.T, backend *segmentBackend) *Channel {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	api, err := apiclient.New(server.URL, "sk-test", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	store, err := bolt.New(filepath.Join(t.TempDir(), "richflyer.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	resolver := device.NewResolver(api)
	cache := token.NewCache(store, api, "example.com")
	return New(api, cache, resolver)
}

func standardSub() *model.DeviceSubscription {
	return model.NewStandardSubscription("https://push.example.com/ep", []byte{0, 0, 0}, []byte{1})
}

func TestCallSucceedsFirstTry(t *testing.T) {
	backend := &segmentBackend{}
	ch := newTestChannel(t, backend)

	if err := ch.UpdateSegments(context.Background(), standardSub(), map[string]string{"a": "b"}); err != nil {
		t.Fatalf("update segments: %v", err)
	}
	issue, segment, _ := backend.counts()
	if issue != 1 || segment != 1 {
		t.Fatalf("issue=%d segment=%d, want 1 and 1", issue, segment)
	}
}

func TestRetriesOnceOn401(t *testing.T) {
	backend := &segmentBackend{segmentStatus: []int{http.StatusUnauthorized}}
	ch := newTestChannel(t, backend)

	if err := ch.UpdateSegments(context.Background(), standardSub(), map[string]string{"a": "b"}); err != nil {
		t.Fatalf("update segments: %v", err)
	}
	issue, segment, _ := backend.counts()
	if segment != 2 {
		t.Fatalf("segment calls = %d, want exactly 2", segment)
	}
	if issue != 2 {
		t.Fatalf("issue calls = %d, want 2 (initial + one refresh)", issue)
	}
}

func TestSecond401IsTerminal(t *testing.T) {
	backend := &segmentBackend{segmentStatus: []int{http.StatusUnauthorized, http.StatusUnauthorized}}
	ch := newTestChannel(t, backend)

	err := ch.UpdateSegments(context.Background(), standardSub(), map[string]string{"a": "b"})
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("err = %v, want ErrOperationFailed", err)
	}
	issue, segment, _ := backend.counts()
	if segment != 2 {
		t.Fatalf("segment calls = %d, want exactly 2 (no third attempt)", segment)
	}
	// Exactly one invalidation: one refresh-issuance after the initial one.
	if issue != 2 {
		t.Fatalf("issue calls = %d, want 2", issue)
	}
}

func TestNon401FailureIsTerminalImmediately(t *testing.T) {
	backend := &segmentBackend{segmentStatus: []int{http.StatusInternalServerError}}
	ch := newTestChannel(t, backend)

	err := ch.UpdateSegments(context.Background(), standardSub(), map[string]string{"a": "b"})
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("err = %v, want ErrOperationFailed", err)
	}
	issue, segment, _ := backend.counts()
	if segment != 1 || issue != 1 {
		t.Fatalf("issue=%d segment=%d, want 1 and 1", issue, segment)
	}
}

func TestSafariLookupFailureRequestsNoToken(t *testing.T) {
	backend := &segmentBackend{lookupStatus: http.StatusNotFound}
	ch := newTestChannel(t, backend)

	sub := model.NewSafariSubscription("tok-1", "web.com.example")
	err := ch.UpdateSegments(context.Background(), sub, map[string]string{"a": "b"})
	if !errors.Is(err, device.ErrIdentityUnavailable) {
		t.Fatalf("err = %v, want ErrIdentityUnavailable", err)
	}
	issue, segment, lookup := backend.counts()
	if lookup != 1 {
		t.Fatalf("lookup calls = %d, want 1", lookup)
	}
	if issue != 0 || segment != 0 {
		t.Fatalf("issue=%d segment=%d, want no token or segment calls", issue, segment)
	}
}

func TestSafariVariantConvergesOnSameWrapper(t *testing.T) {
	backend := &segmentBackend{segmentStatus: []int{http.StatusUnauthorized}}
	ch := newTestChannel(t, backend)

	sub := model.NewSafariSubscription("tok-1", "web.com.example")
	if err := ch.UpdateSegments(context.Background(), sub, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("update segments: %v", err)
	}
	_, segment, lookup := backend.counts()
	if lookup < 1 {
		t.Fatalf("lookup calls = %d, want at least 1", lookup)
	}
	if segment != 2 {
		t.Fatalf("segment calls = %d, want 2 (401 then success)", segment)
	}
}

func TestTokenIssuanceFailurePropagates(t *testing.T) {
	backend := &segmentBackend{issueStatus: http.StatusForbidden}
	ch := newTestChannel(t, backend)

	err := ch.UpdateSegments(context.Background(), standardSub(), map[string]string{"a": "b"})
	if !errors.Is(err, token.ErrIssuanceFailed) {
		t.Fatalf("err = %v, want ErrIssuanceFailed", err)
	}
	if errors.Is(err, ErrOperationFailed) {
		t.Fatalf("issuance failure must not surface as ErrOperationFailed: %v", err)
	}
	_, segment, _ := backend.counts()
	if segment != 0 {
		t.Fatalf("segment calls = %d, want 0", segment)
	}
}
