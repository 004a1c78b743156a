// Package authcookie decides how signed tokens travel between the API and its
// clients: an httpOnly cookie by default, or the response body for clients that
// present the token themselves as a bearer header.
package authcookie

import (
	"net/http"
	"strings"
	"time"
)

const DefaultName = "bs_token"

// Policy holds the attributes of one auth cookie. Attach and Detach always emit
// the same name, path, domain, secure, httpOnly and SameSite attributes: browsers
// only drop a cookie when the clearing header matches the one that set it.
type Policy struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func NewPolicy(name, domain, sameSite string, secure bool, maxAge time.Duration) Policy {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	mode := ParseSameSite(sameSite)
	// browsers drop SameSite=None cookies that are not Secure
	if mode == http.SameSiteNoneMode {
		secure = true
	}
	return Policy{
		Name:     strings.TrimSpace(name),
		Domain:   strings.TrimSpace(domain),
		Path:     "/",
		Secure:   secure,
		SameSite: mode,
		MaxAge:   maxAge,
	}
}

// WithPath returns a copy of the policy scoped to path.
func (p Policy) WithPath(path string) Policy {
	if path == "" {
		path = "/"
	}
	p.Path = path
	return p
}

// ParseSameSite accepts lax, strict and none (case-insensitive). Everything else is lax.
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (p Policy) Attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    token,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(p.MaxAge / time.Second),
		Expires:  time.Now().Add(p.MaxAge).UTC(),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

func (p Policy) Detach(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

func (p Policy) Read(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.Name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}
