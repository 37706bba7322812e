package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/security"
	"github.com/arjunms/account-service/internal/service"
)

const testStateKey = "external-handler-test-key"

type stubExternalService struct {
	loginURL     string
	outcome      *service.LinkOutcome
	callbackErr  error
	completed    *domain.User
	completeErr  error
	lastProfile  service.ExternalProfile
	lastAsserted service.ExternalAssertion
}

func (s *stubExternalService) LoginURL(state string) string {
	if s.loginURL == "" {
		return ""
	}
	return s.loginURL + "?state=" + state
}

func (s *stubExternalService) HandleCallback(context.Context, string) (*service.LinkOutcome, error) {
	return s.outcome, s.callbackErr
}

func (s *stubExternalService) CompleteRegistration(_ context.Context, assertion service.ExternalAssertion, profile service.ExternalProfile) (*domain.User, error) {
	s.lastAsserted = assertion
	s.lastProfile = profile
	return s.completed, s.completeErr
}

type stubSessionIssuer struct {
	tokens *service.SessionTokens
	err    error
}

func (s *stubSessionIssuer) Issue(*domain.User, bool, string, string) (*service.SessionTokens, error) {
	return s.tokens, s.err
}

func testSessionTokens() *service.SessionTokens {
	return &service.SessionTokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		CSRFToken:    "csrf",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		RefreshTTL:   24 * time.Hour,
	}
}

func newExternalHandlerForTest(svc *stubExternalService) *ExternalHandler {
	return NewExternalHandler(svc, &stubSessionIssuer{tokens: testSessionTokens()}, testCookieManager(), testStateKey)
}

func TestExternalHandlerGoogleLogin(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{})
		rr := httptest.NewRecorder()
		h.GoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))
		requireErrorCode(t, rr, http.StatusForbidden, "AUTH_DISABLED")
	})

	t.Run("redirects with a signed state cookie", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{loginURL: "https://accounts.google.com/auth"})
		rr := httptest.NewRecorder()
		h.GoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))

		if rr.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rr.Code)
		}
		location := rr.Header().Get("Location")
		if !strings.HasPrefix(location, "https://accounts.google.com/auth?state=") {
			t.Fatalf("unexpected redirect %q", location)
		}
		stateCookie := cookieByName(rr, "oauth_state")
		if stateCookie == nil || !stateCookie.HttpOnly {
			t.Fatalf("expected http-only state cookie, got %+v", stateCookie)
		}
		embedded, ok := security.VerifySignedState(stateCookie.Value, testStateKey)
		if !ok {
			t.Fatal("expected verifiable state cookie")
		}
		if location != "https://accounts.google.com/auth?state="+embedded {
			t.Fatalf("cookie state %q does not match redirect %q", embedded, location)
		}
	})
}

func callbackRequest(state, code, cookieValue string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?state="+state+"&code="+code, nil)
	if cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: cookieValue})
	}
	return req
}

func TestExternalHandlerGoogleCallback(t *testing.T) {
	signedIn := &service.LinkOutcome{
		Status:    service.LinkStatusSignedIn,
		User:      &domain.User{ID: 7, Email: "person@example.com"},
		Assertion: service.ExternalAssertion{Provider: "google", SubjectID: "subject-1", Email: "person@example.com", EmailVerified: true},
	}

	t.Run("missing state or code", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{outcome: signedIn})
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, callbackRequest("", "", ""))
		requireErrorCode(t, rr, http.StatusBadRequest, "BAD_REQUEST")
	})

	t.Run("state signed with a different key", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{outcome: signedIn})
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, callbackRequest("abc", "code", security.SignState("abc", "other-key")))
		requireErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("cookie state does not match query state", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{outcome: signedIn})
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, callbackRequest("abc", "code", security.SignState("xyz", testStateKey)))
		requireErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("signed in issues session cookies", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{outcome: signedIn})
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, callbackRequest("abc", "code", security.SignState("abc", testStateKey)))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
		}
		if cookieByName(rr, "access_token") == nil {
			t.Fatal("expected session cookies")
		}
		state := cookieByName(rr, "oauth_state")
		if state == nil || state.MaxAge != -1 {
			t.Fatalf("expected state cookie cleared, got %+v", state)
		}
	})

	t.Run("unverified provider email", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{callbackErr: service.ErrExternalEmailUnverified})
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, callbackRequest("abc", "code", security.SignState("abc", testStateKey)))
		requireErrorCode(t, rr, http.StatusForbidden, "EMAIL_UNVERIFIED")
	})

	t.Run("needs completion returns a signed registration token", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{outcome: &service.LinkOutcome{
			Status:    service.LinkStatusNeedsCompletion,
			Assertion: service.ExternalAssertion{Provider: "google", SubjectID: "subject-1", Email: "new@example.com", EmailVerified: true},
		}})
		rr := httptest.NewRecorder()
		h.GoogleCallback(rr, callbackRequest("abc", "code", security.SignState("abc", testStateKey)))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		env := decodeEnvelope(t, rr)
		data, ok := env.Data.(map[string]any)
		if !ok {
			t.Fatalf("unexpected data %T", env.Data)
		}
		if data["status"] != "needs_completion" || data["email"] != "new@example.com" {
			t.Fatalf("unexpected payload %+v", data)
		}
		token, _ := data["registration_token"].(string)
		if _, ok := security.VerifySignedState(token, testStateKey); !ok {
			t.Fatalf("expected verifiable registration token, got %q", token)
		}
	})
}

func TestExternalHandlerGoogleComplete(t *testing.T) {
	assertion := service.ExternalAssertion{Provider: "google", SubjectID: "subject-1", Email: "new@example.com", EmailVerified: true}

	signToken := func(t *testing.T, h *ExternalHandler) string {
		t.Helper()
		token, err := h.signAssertion(assertion)
		if err != nil {
			t.Fatalf("sign assertion: %v", err)
		}
		return token
	}

	t.Run("tampered registration token", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{})
		rr := httptest.NewRecorder()
		h.GoogleComplete(rr, jsonRequest(http.MethodPost, "/api/v1/auth/google/complete",
			`{"registration_token":"forged.token","email":"new@example.com"}`))
		requireErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("valid token completes registration and signs in", func(t *testing.T) {
		svc := &stubExternalService{completed: &domain.User{ID: 9, Email: "new@example.com"}}
		h := newExternalHandlerForTest(svc)

		body, _ := json.Marshal(map[string]string{
			"registration_token": signToken(t, h),
			"email":              "new@example.com",
			"first_name":         "New",
		})
		rr := httptest.NewRecorder()
		h.GoogleComplete(rr, jsonRequest(http.MethodPost, "/api/v1/auth/google/complete", string(body)))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
		}
		if svc.lastAsserted.SubjectID != "subject-1" {
			t.Fatalf("expected round-tripped assertion, got %+v", svc.lastAsserted)
		}
		if svc.lastProfile.FirstName != "New" {
			t.Fatalf("expected profile passed through, got %+v", svc.lastProfile)
		}
		if cookieByName(rr, "access_token") == nil {
			t.Fatal("expected session cookies")
		}
	})

	t.Run("identity linked elsewhere while completing", func(t *testing.T) {
		h := newExternalHandlerForTest(&stubExternalService{completeErr: service.ErrExternalIdentityTaken})
		body, _ := json.Marshal(map[string]string{"registration_token": signToken(t, h), "email": "new@example.com"})

		rr := httptest.NewRecorder()
		h.GoogleComplete(rr, jsonRequest(http.MethodPost, "/api/v1/auth/google/complete", string(body)))
		requireErrorCode(t, rr, http.StatusConflict, "IDENTITY_TAKEN")
	})
}
