// Package session derives the signed-in state from the persisted cookie store.
//
// A Session is an immutable snapshot computed once at start-up and again only
// after an explicit sign-in or sign-out. Nothing polls the store in between.
package session

import (
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firstbutton/docucal/internal/constants"
)

// Session is a point-in-time view of the credential marker.
// DisplayName is non-empty if and only if Authenticated is true.
type Session struct {
	authenticated bool
	displayName   string
}

// Anonymous is the logged-out session.
func Anonymous() Session {
	return Session{}
}

// SignedIn builds an authenticated snapshot. An empty name yields Anonymous.
func SignedIn(displayName string) Session {
	if displayName == "" {
		return Anonymous()
	}
	return Session{authenticated: true, displayName: displayName}
}

// Authenticated reports whether the marker cookie was present.
func (s Session) Authenticated() bool {
	return s.authenticated
}

// DisplayName is the local part of the account email.
func (s Session) DisplayName() string {
	return s.displayName
}

func (s Session) String() string {
	if !s.authenticated {
		return "not signed in"
	}
	return "signed in as " + s.displayName
}

// CookieSource reads a cookie visible to a URL.
type CookieSource interface {
	Get(u *url.URL, name string) (string, bool)
}

// CookieSink persists a cookie for a URL. Writing an already-expired cookie deletes it.
type CookieSink interface {
	Store(u *url.URL, c *nethttp.Cookie) error
}

// Detect reads the user_email marker for base and builds a snapshot.
// A missing, expired or empty marker is the normal logged-out result.
func Detect(store CookieSource, base *url.URL) Session {
	raw, ok := store.Get(base, constants.SessionCookieName)
	if !ok {
		return Anonymous()
	}

	name := DisplayNameFromCookie(raw)
	if name == "" {
		return Anonymous()
	}
	return SignedIn(name)
}

// DisplayNameFromCookie percent-decodes the cookie value and returns the part
// before the first '@'. '+' is left alone. A malformed escape falls back to the
// raw value. Surrounding double quotes, which some servers add when the email
// contains '@', are stripped.
func DisplayNameFromCookie(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	local, _, _ := strings.Cut(decoded, "@")
	return strings.TrimSpace(local)
}

// EncodeEmail encodes an email the way a browser's encodeURIComponent would,
// so DisplayNameFromCookie can reverse it.
func EncodeEmail(email string) string {
	return strings.ReplaceAll(url.QueryEscape(email), "+", "%20")
}

// Record writes the marker cookie for base.
func Record(store CookieSink, base *url.URL, email string) error {
	email = strings.TrimSpace(email)
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" {
		return fmt.Errorf("invalid email address %q", email)
	}

	return store.Store(base, &nethttp.Cookie{
		Name:  constants.SessionCookieName,
		Value: EncodeEmail(email),
		Path:  constants.SessionCookiePath,
	})
}

// SignOut overwrites the marker with an already-expired value, which removes it.
// Callers re-run Detect afterwards to get the fresh snapshot.
func SignOut(store CookieSink, base *url.URL) error {
	return store.Store(base, &nethttp.Cookie{
		Name:    constants.SessionCookieName,
		Value:   "",
		Path:    constants.SessionCookiePath,
		Expires: time.Unix(0, 0).UTC(),
	})
}
