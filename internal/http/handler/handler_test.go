package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/http/middleware"
	"github.com/arjunms/account-service/internal/http/response"
	"github.com/arjunms/account-service/internal/security"
	"github.com/arjunms/account-service/internal/service"
)

func testCookieManager() *security.CookieManager {
	return security.NewCookieManager("", false, "lax")
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func requireErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.Error == nil || env.Error.Code != code {
		t.Fatalf("expected error code %q, got %+v", code, env)
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func authenticatedRequest(method, target, body, subject string) *http.Request {
	req := jsonRequest(method, target, body)
	claims := &security.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
	return req.WithContext(context.WithValue(req.Context(), middleware.ClaimsContextKey, claims))
}

func cookieByName(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func testLoginResult() *service.LoginResult {
	return &service.LoginResult{
		User:         &domain.User{ID: 7, Email: "user@example.com"},
		AccessToken:  "access",
		RefreshToken: "refresh",
		CSRFToken:    "csrf",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		RefreshTTL:   24 * time.Hour,
	}
}

// stubAuthService satisfies AuthServiceInterface with canned results.
type stubAuthService struct {
	registerResult *service.LoginResult
	registerErr    error
	loginResult    *service.LoginResult
	loginErr       error
	refreshResult  *service.LoginResult
	refreshErr     error
	changeErr      error
	logoutErr      error
	logoutCalls    int
}

func (s *stubAuthService) Register(context.Context, service.RegisterParams) (*service.LoginResult, error) {
	return s.registerResult, s.registerErr
}

func (s *stubAuthService) Login(context.Context, string, string, bool, string, string) (*service.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuthService) ChangePassword(context.Context, uint, string, string) error {
	return s.changeErr
}

func (s *stubAuthService) Refresh(context.Context, string, string, string) (*service.LoginResult, error) {
	return s.refreshResult, s.refreshErr
}

func (s *stubAuthService) Logout(context.Context, uint) error {
	s.logoutCalls++
	return s.logoutErr
}

func (s *stubAuthService) ParseUserID(subject string) (uint, error) {
	id64, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id64), nil
}

type stubRecoveryService struct {
	requestErr  error
	completeErr error
}

func (s *stubRecoveryService) RequestReset(context.Context, string, string) error {
	return s.requestErr
}

func (s *stubRecoveryService) CompleteReset(context.Context, string, string, string) error {
	return s.completeErr
}

type stubConfirmationService struct {
	requestErr error
	confirmErr error
}

func (s *stubConfirmationService) RequestConfirmation(context.Context, string) error {
	return s.requestErr
}

func (s *stubConfirmationService) Confirm(context.Context, string) error {
	return s.confirmErr
}

func newAuthHandlerForTest(auth *stubAuthService, recovery *stubRecoveryService, confirm *stubConfirmationService) *AuthHandler {
	if auth == nil {
		auth = &stubAuthService{}
	}
	if recovery == nil {
		recovery = &stubRecoveryService{}
	}
	if confirm == nil {
		confirm = &stubConfirmationService{}
	}
	return NewAuthHandler(auth, recovery, confirm, testCookieManager())
}
