package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/arjunms/account-service/internal/config"
)

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	baseURL, client, closeFn := newAccountTestServerWithOptions(t, accountTestServerOptions{
		cfgOverride: func(cfg *config.Config) {
			cfg.AuthLockoutMaxFailedAttempts = 3
			cfg.AuthLockoutDuration = 300 * time.Millisecond
		},
	})
	defer closeFn()

	email := "lockout@example.com"
	password := "Valid#Pass1234"
	registerAndLogin(t, client, baseURL, email, password)

	for i := 0; i < 2; i++ {
		resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
			"email":    email,
			"password": "Wrong#Pass0000",
		}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" {
			t.Fatalf("attempt %d: expected invalid credentials, got %#v", i+1, env.Error)
		}
	}

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": "Wrong#Pass0000",
	}, nil)
	if resp.StatusCode != http.StatusLocked {
		t.Fatalf("third failure should lock the account, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "ACCOUNT_LOCKED" {
		t.Fatalf("expected account locked error, got %#v", env.Error)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusLocked {
		t.Fatalf("correct password must not bypass an active lockout, got %d", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "ACCOUNT_LOCKED" {
		t.Fatalf("expected account locked error, got %#v", env.Error)
	}

	time.Sleep(400 * time.Millisecond)

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login after lockout expiry failed: status=%d", resp.StatusCode)
	}
}

func TestLockoutCounterResetsOnSuccess(t *testing.T) {
	baseURL, client, closeFn := newAccountTestServer(t)
	defer closeFn()

	email := "lockout-reset@example.com"
	password := "Valid#Pass1234"
	registerAndLogin(t, client, baseURL, email, password)

	fail := func() {
		t.Helper()
		resp, _ := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
			"email":    email,
			"password": "Wrong#Pass0000",
		}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
		}
	}

	fail()
	fail()

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login should reset the failure counter, got status=%d", resp.StatusCode)
	}

	fail()
	fail()

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("two failures after a success must not lock, got status=%d error=%#v", resp.StatusCode, env.Error)
	}
}

func TestLockoutDoesNotRevealUnknownAccounts(t *testing.T) {
	baseURL, client, closeFn := newAccountTestServer(t)
	defer closeFn()

	for i := 0; i < 5; i++ {
		resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]any{
			"email":    "ghost@example.com",
			"password": "Wrong#Pass0000",
		}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: unknown accounts always get 401, got %d", i+1, resp.StatusCode)
		}
		if env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" {
			t.Fatalf("attempt %d: expected invalid credentials, got %#v", i+1, env.Error)
		}
	}
}
