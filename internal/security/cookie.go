package security

import (
	"net/http"
	"time"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	csrfCookieName    = "csrf_token"
	stateCookieName   = "oauth_state"

	refreshCookiePath = "/api/v1/auth"
	stateCookiePath   = "/api/v1/auth/google"
)

type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	mode := http.SameSiteLaxMode
	switch sameSite {
	case "strict":
		mode = http.SameSiteStrictMode
	case "none":
		mode = http.SameSiteNoneMode
	}
	return &CookieManager{Domain: domain, Secure: secure, SameSite: mode}
}

func (m *CookieManager) SetTokenCookies(w http.ResponseWriter, access, refresh, csrf string, refreshTTL time.Duration) {
	http.SetCookie(w, m.cookie(accessCookieName, access, "/", true, int((15 * time.Minute).Seconds())))
	http.SetCookie(w, m.cookie(refreshCookieName, refresh, refreshCookiePath, true, int(refreshTTL.Seconds())))
	http.SetCookie(w, m.cookie(csrfCookieName, csrf, "/", false, int(refreshTTL.Seconds())))
}

func (m *CookieManager) SetStateCookie(w http.ResponseWriter, signed string, maxAge int) {
	http.SetCookie(w, m.cookie(stateCookieName, signed, stateCookiePath, true, maxAge))
}

func (m *CookieManager) ClearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(stateCookieName, "", stateCookiePath, true, -1))
}

func (m *CookieManager) ClearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(accessCookieName, "", "/", true, -1))
	http.SetCookie(w, m.cookie(refreshCookieName, "", refreshCookiePath, true, -1))
	http.SetCookie(w, m.cookie(csrfCookieName, "", "/", false, -1))
	http.SetCookie(w, m.cookie(stateCookieName, "", stateCookiePath, true, -1))
}

func (m *CookieManager) cookie(name, value, path string, httpOnly bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   m.Domain,
		HttpOnly: httpOnly,
		Secure:   m.Secure,
		SameSite: m.SameSite,
		MaxAge:   maxAge,
	}
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
