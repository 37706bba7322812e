package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arjunms/account-service/internal/http/middleware"
	"github.com/arjunms/account-service/internal/http/response"
	"github.com/arjunms/account-service/internal/observability"
	"github.com/arjunms/account-service/internal/security"
	"github.com/arjunms/account-service/internal/service"
)

type AuthHandler struct {
	authSvc         service.AuthServiceInterface
	recoverySvc     service.RecoveryServiceInterface
	confirmationSvc service.ConfirmationServiceInterface
	cookieMgr       *security.CookieManager
}

func NewAuthHandler(
	authSvc service.AuthServiceInterface,
	recoverySvc service.RecoveryServiceInterface,
	confirmationSvc service.ConfirmationServiceInterface,
	cookieMgr *security.CookieManager,
) *AuthHandler {
	return &AuthHandler{
		authSvc:         authSvc,
		recoverySvc:     recoverySvc,
		confirmationSvc: confirmationSvc,
		cookieMgr:       cookieMgr,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.Register(r.Context(), service.RegisterParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		status = "failure"
		observability.Audit(r, "account.register.failed", "reason", err.Error())
		observability.RecordRegistration(r.Context(), "local", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "account.register.success", "user_id", result.User.ID)
	observability.RecordRegistration(r.Context(), "local", "success")

	if result.RequiresVerification {
		response.JSON(w, r, http.StatusCreated, map[string]any{
			"user":                  result.User,
			"requires_verification": true,
		})
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, result.RefreshTTL)
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"user":       result.User,
		"csrf_token": result.CSRFToken,
		"expires_at": result.ExpiresAt,
	})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	result, err := h.authSvc.Login(r.Context(), req.Email, req.Password, req.RememberMe, r.UserAgent(), clientIP(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "account.login.failed", "reason", err.Error())
		observability.RecordLogin(r.Context(), "local", "failure")
		if errors.Is(err, service.ErrAccountLocked) {
			observability.RecordLockout(r.Context())
		}
		writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, result.RefreshTTL)
	observability.Audit(r, "account.login.success", "user_id", result.User.ID, "provider", "local")
	observability.RecordLogin(r.Context(), "local", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       result.User,
		"csrf_token": result.CSRFToken,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", status, time.Since(start))
	}()

	refresh := security.GetCookie(r, "refresh_token")
	if refresh == "" {
		status = "failure"
		observability.RecordSessionEvent(r.Context(), "refresh", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh token", nil)
		return
	}
	result, err := h.authSvc.Refresh(r.Context(), refresh, r.UserAgent(), clientIP(r))
	if err != nil {
		status = "failure"
		observability.Audit(r, "account.refresh.failed", "reason", "invalid_refresh")
		observability.RecordSessionEvent(r.Context(), "refresh", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token", nil)
		return
	}
	h.cookieMgr.SetTokenCookies(w, result.AccessToken, result.RefreshToken, result.CSRFToken, result.RefreshTTL)
	observability.RecordSessionEvent(r.Context(), "refresh", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       result.User,
		"csrf_token": result.CSRFToken,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", status, time.Since(start))
	}()

	uid, ok := h.userID(w, r)
	if !ok {
		status = "failure"
		return
	}
	if err := h.authSvc.Logout(r.Context(), uid); err != nil {
		status = "failure"
		observability.RecordSessionEvent(r.Context(), "logout", "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}
	h.cookieMgr.ClearTokenCookies(w)
	observability.Audit(r, "account.logout.success", "user_id", uid)
	observability.RecordSessionEvent(r.Context(), "logout", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "change_password", status, time.Since(start))
	}()

	uid, ok := h.userID(w, r)
	if !ok {
		status = "failure"
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.authSvc.ChangePassword(r.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		status = "failure"
		observability.Audit(r, "account.password.change.failed", "user_id", uid)
		writeAuthError(w, r, err)
		return
	}
	// All sessions are revoked, including this one.
	h.cookieMgr.ClearTokenCookies(w)
	observability.Audit(r, "account.password.change.success", "user_id", uid)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) PasswordForgot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_forgot", status, time.Since(start))
	}()

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.recoverySvc.RequestReset(r.Context(), req.Email, clientIP(r)); err != nil {
		status = "failure"
		observability.RecordPasswordResetEvent(r.Context(), "request", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "account.password.forgot.accepted")
	observability.RecordPasswordResetEvent(r.Context(), "request", "success")
	// Deliberately identical for known and unknown emails.
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "reset_email_sent"})
}

type passwordResetRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "password_reset", status, time.Since(start))
	}()

	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.recoverySvc.CompleteReset(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		status = "failure"
		observability.Audit(r, "account.password.reset.failed")
		observability.RecordPasswordResetEvent(r.Context(), "complete", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "account.password.reset.success")
	observability.RecordPasswordResetEvent(r.Context(), "complete", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_reset"})
}

func (h *AuthHandler) VerifyRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_request", status, time.Since(start))
	}()

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.confirmationSvc.RequestConfirmation(r.Context(), req.Email); err != nil {
		status = "failure"
		observability.RecordEmailVerifyEvent(r.Context(), "request", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.RecordEmailVerifyEvent(r.Context(), "request", "success")
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "verification_email_sent"})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyConfirm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_confirm", status, time.Since(start))
	}()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.confirmationSvc.Confirm(r.Context(), req.Token); err != nil {
		status = "failure"
		observability.Audit(r, "account.email.verify.failed")
		observability.RecordEmailVerifyEvent(r.Context(), "confirm", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "account.email.verify.success")
	observability.RecordEmailVerifyEvent(r.Context(), "confirm", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "email_verified"})
}

func (h *AuthHandler) userID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return 0, false
	}
	uid, err := h.authSvc.ParseUserID(claims.Subject)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
		return 0, false
	}
	return uid, true
}

// writeAuthError maps service errors to HTTP responses. Invalid-credential
// and token failures stay deliberately vague.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var cooldown *service.CooldownError
	switch {
	case errors.As(err, &cooldown):
		w.Header().Set("Retry-After", retrySeconds(cooldown.RetryAfter))
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials", nil)
	case errors.Is(err, service.ErrAccountLocked):
		response.Error(w, r, http.StatusLocked, "ACCOUNT_LOCKED", "account temporarily locked", nil)
	case errors.Is(err, service.ErrEmailTaken):
		response.Error(w, r, http.StatusConflict, "EMAIL_TAKEN", "email already registered", nil)
	case errors.Is(err, service.ErrWeakPassword):
		response.Error(w, r, http.StatusBadRequest, "WEAK_PASSWORD", "password does not meet policy requirements", nil)
	case errors.Is(err, service.ErrEmailUnverified), errors.Is(err, service.ErrExternalEmailUnverified):
		response.Error(w, r, http.StatusForbidden, "EMAIL_UNVERIFIED", "email verification required", nil)
	case errors.Is(err, service.ErrPurposeTokenInvalid):
		response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "invalid or expired token", nil)
	case errors.Is(err, service.ErrLocalAuthDisabled), errors.Is(err, service.ErrGoogleAuthDisabled):
		response.Error(w, r, http.StatusForbidden, "AUTH_DISABLED", "authentication method disabled", nil)
	case errors.Is(err, service.ErrExternalIdentityTaken):
		response.Error(w, r, http.StatusConflict, "IDENTITY_TAKEN", "external identity already linked", nil)
	case errors.Is(err, service.ErrInvalidEmail):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid email address", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func retrySeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
