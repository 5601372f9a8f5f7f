package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	// SecureCookieName is used when cookies are Secure; the __Host- prefix pins them to this origin.
	SecureCookieName = "__Host-lp_session"
	// DevCookieName is used over plain http in development.
	DevCookieName = "lp_session"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

// Name returns the cookie name for these options.
func (o CookieOptions) Name() string {
	if o.Secure {
		return SecureCookieName
	}
	return DevCookieName
}

func (o CookieOptions) normalize() CookieOptions {
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// SetCookie issues the session cookie. Path is always "/" and Domain empty, as __Host- requires.
func SetCookie(w http.ResponseWriter, value string, expiresAt time.Time, opts CookieOptions) {
	opts = opts.normalize()
	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name(),
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()
	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// TokenFromRequest returns the bearer token if present, else the session cookie value.
func TokenFromRequest(r *http.Request, opts CookieOptions) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(opts.Name()); err == nil {
		return c.Value
	}
	return ""
}
