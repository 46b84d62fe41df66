// Package core wires the session snapshot, the staging set and the upload
// orchestrator into the single page-level owner that front ends drive.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/logging"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/session"
	"github.com/firstbutton/docucal/internal/staging"
	"github.com/firstbutton/docucal/internal/upload"
)

var (
	// ErrLoginRequired gates file picking while no session marker is present.
	ErrLoginRequired = errors.New("login required")
	// ErrNothingStaged is returned by Commit on an empty staging set.
	ErrNothingStaged = errors.New("no files staged")
)

// Backend is what the page needs from the API client.
type Backend interface {
	session.LoginURLFetcher
	upload.Uploader
}

// Options configures a Page.
type Options struct {
	Store    session.Store
	Base     *url.URL
	Backend  Backend
	Open     session.Opener // nil prints-only
	EventBus *events.EventBus
	Logger   *logging.Logger
	Upload   upload.Options
}

// Page owns the session snapshot and the staging set for one program run.
type Page struct {
	store    session.Store
	base     *url.URL
	eventBus *events.EventBus
	logger   *logging.Logger

	login *session.Login
	set   *staging.Set
	orch  *upload.Orchestrator

	mu      sync.RWMutex
	session session.Session
}

// NewPage builds the page and takes the start-up session snapshot.
func NewPage(opts Options) *Page {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	set := staging.NewSet(opts.EventBus)
	p := &Page{
		store:    opts.Store,
		base:     opts.Base,
		eventBus: opts.EventBus,
		logger:   logger,
		login:    session.NewLogin(opts.Backend, opts.Open, opts.Store, opts.Base, logger),
		set:      set,
		orch:     upload.New(set, opts.Backend, opts.EventBus, logger, opts.Upload),
	}
	p.Reload()
	return p
}

// Session returns the current snapshot.
func (p *Page) Session() session.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// Set exposes the staging set for listing and editing.
func (p *Page) Set() *staging.Set {
	return p.set
}

// Reload re-reads the session marker, as a full page reload would.
func (p *Page) Reload() session.Session {
	s := session.Detect(p.store, p.base)
	p.setSession(s)
	return s
}

func (p *Page) setSession(s session.Session) {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	if p.eventBus != nil {
		p.eventBus.PublishSession(s.Authenticated(), s.DisplayName())
	}
}

// SignIn starts the external sign-in flow and returns the URL shown to the user.
func (p *Page) SignIn(ctx context.Context) (string, error) {
	return p.login.Start(ctx)
}

// CompleteSignIn records the account email and refreshes the snapshot.
func (p *Page) CompleteSignIn(email string) (session.Session, error) {
	s, err := p.login.Complete(email)
	if err != nil {
		return p.Session(), err
	}
	p.setSession(s)
	p.logger.Info().Str("user", s.DisplayName()).Msg("Signed in")
	return s, nil
}

// SignOut expires the session marker and reloads.
func (p *Page) SignOut() (session.Session, error) {
	if err := session.SignOut(p.store, p.base); err != nil {
		return p.Session(), fmt.Errorf("failed to sign out: %w", err)
	}
	return p.Reload(), nil
}

// RequestPicker is the upload entry point. When signed in it returns ("", nil)
// and the caller may pick files. Otherwise the picker stays closed, sign-in is
// started instead, and the returned error matches ErrLoginRequired; the URL is
// returned when it could be fetched.
func (p *Page) RequestPicker(ctx context.Context) (string, error) {
	if p.Session().Authenticated() {
		return "", nil
	}

	p.logger.Debug().Msg("Upload requested without a session, starting sign-in")
	loginURL, err := p.login.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLoginRequired, err)
	}
	return loginURL, ErrLoginRequired
}

// FilesPicked stages the picked documents, replacing anything staged before.
// Unusable paths are returned and skipped. Picking is refused without a session.
func (p *Page) FilesPicked(patterns []string) ([]staging.Rejected, error) {
	if !p.Session().Authenticated() {
		return nil, ErrLoginRequired
	}

	files, rejected, err := staging.Pick(patterns)
	if err != nil {
		return nil, err
	}
	for _, r := range rejected {
		p.logger.Warn().Err(r.Err).Str("path", r.Path).Msg("Skipping file")
	}

	p.set.Stage(files)
	return rejected, nil
}

// SetTag changes the colour of one staged document.
func (p *Page) SetTag(index int, tag models.Tag) error {
	return p.set.SetTag(index, tag)
}

// Remove drops one staged document.
func (p *Page) Remove(index int) error {
	return p.set.Remove(index)
}

// Cancel discards the staging set without uploading.
func (p *Page) Cancel() {
	p.set.Clear()
}

// Commit uploads the staging set using the current snapshot.
func (p *Page) Commit(ctx context.Context) (*upload.BatchOutcome, error) {
	if !p.set.CommitRequested() {
		return nil, ErrNothingStaged
	}

	if p.eventBus != nil {
		p.eventBus.PublishLog(events.InfoLevel, fmt.Sprintf("Processing %d file(s)...", p.set.Len()), nil)
	}
	return p.orch.Run(ctx, p.Session())
}

// Busy reports whether a commit is running.
func (p *Page) Busy() bool {
	return p.orch.Busy()
}
