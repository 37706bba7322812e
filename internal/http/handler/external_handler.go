package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arjunms/account-service/internal/http/response"
	"github.com/arjunms/account-service/internal/observability"
	"github.com/arjunms/account-service/internal/security"
	"github.com/arjunms/account-service/internal/service"
)

// ExternalHandler drives the browser-facing Google sign-in flow. The OAuth
// state and the pending registration assertion are both HMAC-signed so
// neither can be forged between requests.
type ExternalHandler struct {
	externalSvc service.ExternalServiceInterface
	sessions    service.SessionIssuer
	cookieMgr   *security.CookieManager
	stateKey    string
}

func NewExternalHandler(externalSvc service.ExternalServiceInterface, sessions service.SessionIssuer, cookieMgr *security.CookieManager, stateKey string) *ExternalHandler {
	return &ExternalHandler{externalSvc: externalSvc, sessions: sessions, cookieMgr: cookieMgr, stateKey: stateKey}
}

func (h *ExternalHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_login", status, time.Since(start))
	}()

	state, err := security.NewRandomString(24)
	if err != nil {
		status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to generate oauth state", nil)
		return
	}
	loginURL := h.externalSvc.LoginURL(state)
	if loginURL == "" {
		status = "failure"
		response.Error(w, r, http.StatusForbidden, "AUTH_DISABLED", "google auth is disabled", nil)
		return
	}
	h.cookieMgr.SetStateCookie(w, security.SignState(state, h.stateKey), 300)
	observability.Audit(r, "account.google.login.redirect")
	http.Redirect(w, r, loginURL, http.StatusFound)
}

func (h *ExternalHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_callback", status, time.Since(start))
	}()

	queryState := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if queryState == "" || code == "" {
		status = "failure"
		observability.RecordLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing state or code", nil)
		return
	}
	stateCookie := security.GetCookie(r, "oauth_state")
	state, ok := security.VerifySignedState(stateCookie, h.stateKey)
	if !ok || state != queryState {
		status = "failure"
		observability.Audit(r, "account.google.callback.failed", "reason", "invalid_state")
		observability.RecordLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid oauth state", nil)
		return
	}
	// One-time state, gone as soon as it verifies.
	h.cookieMgr.ClearStateCookie(w)

	outcome, err := h.externalSvc.HandleCallback(r.Context(), code)
	if err != nil {
		status = "failure"
		observability.Audit(r, "account.google.callback.failed", "reason", "exchange", "error", err.Error())
		observability.RecordLogin(r.Context(), "google", "failure")
		writeAuthError(w, r, err)
		return
	}

	if outcome.Status == service.LinkStatusNeedsCompletion {
		payload, err := h.signAssertion(outcome.Assertion)
		if err != nil {
			status = "failure"
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
			return
		}
		observability.Audit(r, "account.google.callback.needs_completion")
		observability.RecordExternalLinkEvent(r.Context(), outcome.Assertion.Provider, "needs_completion")
		response.JSON(w, r, http.StatusOK, map[string]any{
			"status":             "needs_completion",
			"registration_token": payload,
			"email":              outcome.Assertion.Email,
		})
		return
	}

	h.signIn(w, r, outcome, "callback", &status)
}

type completeRegistrationRequest struct {
	RegistrationToken string `json:"registration_token"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
}

// GoogleComplete finishes registration for an external identity that had
// no account at callback time.
func (h *ExternalHandler) GoogleComplete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_complete", status, time.Since(start))
	}()

	var req completeRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	assertion, ok := h.verifyAssertion(req.RegistrationToken)
	if !ok {
		status = "failure"
		observability.Audit(r, "account.google.complete.failed", "reason", "invalid_registration_token")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid registration token", nil)
		return
	}

	user, err := h.externalSvc.CompleteRegistration(r.Context(), assertion, service.ExternalProfile{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		status = "failure"
		observability.Audit(r, "account.google.complete.failed", "reason", err.Error())
		observability.RecordExternalLinkEvent(r.Context(), assertion.Provider, "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.RecordRegistration(r.Context(), "google", "success")

	h.signIn(w, r, &service.LinkOutcome{Status: service.LinkStatusSignedIn, User: user, Assertion: assertion}, "complete", &status)
}

func (h *ExternalHandler) signIn(w http.ResponseWriter, r *http.Request, outcome *service.LinkOutcome, step string, status *string) {
	tokens, err := h.sessions.Issue(outcome.User, false, r.UserAgent(), clientIP(r))
	if err != nil {
		*status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	h.cookieMgr.SetTokenCookies(w, tokens.AccessToken, tokens.RefreshToken, tokens.CSRFToken, tokens.RefreshTTL)
	observability.Audit(r, "account.login.success", "user_id", outcome.User.ID, "provider", outcome.Assertion.Provider, "step", step)
	observability.RecordLogin(r.Context(), outcome.Assertion.Provider, "success")
	observability.RecordExternalLinkEvent(r.Context(), outcome.Assertion.Provider, "signed_in")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       outcome.User,
		"csrf_token": tokens.CSRFToken,
		"expires_at": tokens.ExpiresAt,
	})
}

func (h *ExternalHandler) signAssertion(assertion service.ExternalAssertion) (string, error) {
	raw, err := json.Marshal(assertion)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return security.SignState(encoded, h.stateKey), nil
}

func (h *ExternalHandler) verifyAssertion(signed string) (service.ExternalAssertion, bool) {
	var assertion service.ExternalAssertion
	encoded, ok := security.VerifySignedState(signed, h.stateKey)
	if !ok {
		return assertion, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return assertion, false
	}
	if err := json.Unmarshal(raw, &assertion); err != nil {
		return assertion, false
	}
	if assertion.Provider == "" || assertion.SubjectID == "" {
		return assertion, false
	}
	return assertion, true
}
