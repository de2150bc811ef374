// Package health runs one-shot readiness checks against the keychain backend
// and a running keyring-mcp HTTP server.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/benaskins/keyring-mcp/internal/keychain"
)

// Status represents the outcome of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one dependency and returns nil if it is usable.
type Check func(ctx context.Context) error

// Result records the outcome of a single check.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Healthy reports whether every result passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if r.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// Run executes fn with the given timeout and records the outcome.
func Run(ctx context.Context, name string, timeout time.Duration, fn Check) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("panic: %v", r)
			}
		}()
		errc <- fn(ctx)
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = fmt.Errorf("timed out after %s", timeout)
	}

	result := Result{Name: name, Duration: time.Since(start)}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "ok"
	}
	return result
}

// StoreCheck writes, reads back and removes a throwaway secret under scope.
// The keychain APIs are synchronous, so a hung backend is caught by Run's
// timeout rather than ctx.
func StoreCheck(store keychain.Store, scope string) Check {
	return func(ctx context.Context) error {
		key := "health-probe-" + uuid.NewString()
		want := uuid.NewString()

		if err := store.Set(scope, key, want); err != nil {
			return fmt.Errorf("set: %w", err)
		}
		defer store.Delete(scope, key)

		got, err := store.Get(scope, key)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if got != want {
			return errors.New("get: value read back does not match value written")
		}

		existed, err := store.Delete(scope, key)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if !existed {
			return errors.New("delete: probe secret vanished before removal")
		}
		return nil
	}
}

// HTTPCheck fetches url and expects a 2xx response whose JSON body reports
// status "ok".
func HTTPCheck(client *http.Client, url string) Check {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if body.Status != "ok" {
			return fmt.Errorf("server reported status %q", body.Status)
		}
		return nil
	}
}
