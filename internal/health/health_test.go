package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benaskins/keyring-mcp/internal/api"
	"github.com/benaskins/keyring-mcp/internal/keychain"
	"github.com/benaskins/keyring-mcp/internal/mcp"
)

type lockedStore struct{ keychain.Store }

func (lockedStore) Set(scope, key, value string) error {
	return errors.New("keychain is locked")
}

type lossyStore struct{ *keychain.MemoryStore }

func (lossyStore) Get(scope, key string) (string, error) { return "stale", nil }

func TestStoreCheckHealthy(t *testing.T) {
	store := keychain.NewMemoryStore()
	r := Run(context.Background(), "keychain", time.Second, StoreCheck(store, "probe-scope"))
	if r.Status != StatusHealthy {
		t.Fatalf("status = %s, message = %s", r.Status, r.Message)
	}

	keys, err := store.List("probe-scope")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("probe left secrets behind: %v", keys)
	}
}

func TestStoreCheckSetFails(t *testing.T) {
	r := Run(context.Background(), "keychain", time.Second, StoreCheck(lockedStore{}, "s"))
	if r.Status != StatusUnhealthy {
		t.Fatalf("status = %s", r.Status)
	}
	if !strings.Contains(r.Message, "set: keychain is locked") {
		t.Errorf("message = %q", r.Message)
	}
}

func TestStoreCheckMismatch(t *testing.T) {
	store := lossyStore{keychain.NewMemoryStore()}
	r := Run(context.Background(), "keychain", time.Second, StoreCheck(store, "s"))
	if r.Status != StatusUnhealthy {
		t.Fatalf("status = %s", r.Status)
	}
	if !strings.Contains(r.Message, "does not match") {
		t.Errorf("message = %q", r.Message)
	}
	if keys, _ := store.List("s"); len(keys) != 0 {
		t.Errorf("probe left secrets behind: %v", keys)
	}
}

func TestRunTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	r := Run(context.Background(), "slow", 20*time.Millisecond, func(context.Context) error {
		<-block
		return nil
	})
	if r.Status != StatusUnhealthy || !strings.Contains(r.Message, "timed out") {
		t.Errorf("result = %+v", r)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	r := Run(context.Background(), "panicky", time.Second, func(context.Context) error {
		panic("boom")
	})
	if r.Status != StatusUnhealthy || !strings.Contains(r.Message, "boom") {
		t.Errorf("result = %+v", r)
	}
}

func TestHTTPCheckAgainstServer(t *testing.T) {
	d := mcp.NewDispatcher(
		mcp.NewSecretRegistry(keychain.NewMemoryStore(), ""),
		mcp.ServerInfo{Version: "test"},
	)
	ts := httptest.NewServer(api.NewServer(d, api.Options{JSONResponse: true}).Handler())
	defer ts.Close()

	r := Run(context.Background(), "http", time.Second, HTTPCheck(ts.Client(), ts.URL+"/health"))
	if r.Status != StatusHealthy {
		t.Fatalf("status = %s, message = %s", r.Status, r.Message)
	}
}

func TestHTTPCheckFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			want: "unhealthy status: 503",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			want: "decoding response",
		},
		{
			name: "degraded",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"draining"}`))
			},
			want: `status "draining"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			r := Run(context.Background(), "http", time.Second, HTTPCheck(ts.Client(), ts.URL))
			if r.Status != StatusUnhealthy {
				t.Fatalf("status = %s", r.Status)
			}
			if !strings.Contains(r.Message, tt.want) {
				t.Errorf("message = %q, want substring %q", r.Message, tt.want)
			}
		})
	}
}

func TestHTTPCheckUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	r := Run(context.Background(), "http", time.Second, HTTPCheck(nil, url))
	if r.Status != StatusUnhealthy || !strings.Contains(r.Message, "request failed") {
		t.Errorf("result = %+v", r)
	}
}

func TestHealthy(t *testing.T) {
	ok := Result{Status: StatusHealthy}
	bad := Result{Status: StatusUnhealthy}
	if !Healthy(nil) || !Healthy([]Result{ok, ok}) {
		t.Error("all-healthy results reported unhealthy")
	}
	if Healthy([]Result{ok, bad}) {
		t.Error("mixed results reported healthy")
	}
}
