package authcookie

import (
	"net/http"
	"strings"
)

const (
	TransportHeader = "X-Auth-Transport"
	transportBearer = "bearer"
)

// Transport pairs the short-lived access cookie with the refresh cookie.
type Transport struct {
	Access  Policy
	Refresh Policy
}

func NewTransport(access Policy, refresh Policy) Transport {
	return Transport{Access: access, Refresh: refresh}
}

// WantsBearer reports whether the client asked to receive tokens in the body
// instead of cookies.
func WantsBearer(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(TransportHeader)), transportBearer)
}

func (t Transport) Write(w http.ResponseWriter, accessToken, refreshToken string) {
	t.Access.Attach(w, accessToken)
	if refreshToken != "" {
		t.Refresh.Attach(w, refreshToken)
	}
}

func (t Transport) Clear(w http.ResponseWriter) {
	t.Access.Detach(w)
	t.Refresh.Detach(w)
}

// AccessToken extracts the access token: the cookie wins over the Authorization header.
func (t Transport) AccessToken(r *http.Request) (string, bool) {
	if v, ok := t.Access.Read(r); ok {
		return v, true
	}
	return BearerToken(r)
}

func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
