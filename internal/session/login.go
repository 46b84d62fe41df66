package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/firstbutton/docucal/internal/logging"
)

// ErrEmptyLoginURL is returned when the backend answers without a URL.
var ErrEmptyLoginURL = errors.New("backend returned an empty login URL")

// LoginURLFetcher asks the backend where the external sign-in page is.
type LoginURLFetcher interface {
	LoginURL(ctx context.Context) (string, error)
}

// Opener shows a URL to the user, typically in the system browser.
type Opener func(rawURL string) error

// Store is what the login flow needs from the cookie store.
type Store interface {
	CookieSource
	CookieSink
}

// Login drives sign-in: fetch the external URL, hand it to the user, then
// record the account email as the session marker once sign-in is done.
type Login struct {
	fetcher LoginURLFetcher
	open    Opener
	store   Store
	base    *url.URL
	logger  *logging.Logger
}

// NewLogin creates a login flow. open may be nil, in which case the URL is
// only returned to the caller.
func NewLogin(fetcher LoginURLFetcher, open Opener, store Store, base *url.URL, logger *logging.Logger) *Login {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Login{
		fetcher: fetcher,
		open:    open,
		store:   store,
		base:    base,
		logger:  logger,
	}
}

// Start fetches the sign-in URL and opens it. Failing to fetch the URL is
// fatal for the attempt; failing to open a browser is not, since the caller
// still prints the URL.
func (l *Login) Start(ctx context.Context) (string, error) {
	loginURL, err := l.fetcher.LoginURL(ctx)
	if err != nil {
		return "", err
	}
	if loginURL == "" {
		return "", ErrEmptyLoginURL
	}

	if l.open != nil {
		if err := l.open(loginURL); err != nil {
			l.logger.Warn().Err(err).Msg("Could not open a browser, open the URL manually")
		}
	}
	return loginURL, nil
}

// Complete records email as the signed-in account and returns the new snapshot.
func (l *Login) Complete(email string) (Session, error) {
	if err := Record(l.store, l.base, email); err != nil {
		return Anonymous(), fmt.Errorf("failed to record session: %w", err)
	}
	s := Detect(l.store, l.base)
	l.logger.Debug().Str("user", s.DisplayName()).Msg("Session recorded")
	return s, nil
}
