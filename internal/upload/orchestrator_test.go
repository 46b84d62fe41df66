package upload

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firstbutton/docucal/internal/api"
	"github.com/firstbutton/docucal/internal/config"
	"github.com/firstbutton/docucal/internal/constants"
	"github.com/firstbutton/docucal/internal/cookies"
	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/session"
	"github.com/firstbutton/docucal/internal/staging"
)

// backend records uploads and answers with a per-file status.
type backend struct {
	mu       sync.Mutex
	received []string
	colors   []string
	status   map[string]int
}

func (b *backend) handler(t *testing.T) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		f, hdr, err := r.FormFile(constants.FormFieldFile)
		if err != nil {
			w.WriteHeader(nethttp.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, f)

		b.mu.Lock()
		b.received = append(b.received, hdr.Filename)
		b.colors = append(b.colors, r.FormValue(constants.FormFieldColor))
		code, ok := b.status[hdr.Filename]
		b.mu.Unlock()

		if ok && code != nethttp.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = io.WriteString(w, `{"status":"success","count":1}`)
	})
}

func (b *backend) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.received...)
}

type fixture struct {
	set     *staging.Set
	orch    *Orchestrator
	backend *backend
	bus     *events.EventBus
}

func newFixture(t *testing.T, status map[string]int, opts Options, names ...string) *fixture {
	t.Helper()
	be := &backend{status: status}
	srv := httptest.NewServer(be.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.BaseURL = srv.URL
	jar, err := cookies.Open("")
	require.NoError(t, err)
	client, err := api.NewClient(cfg, jar, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	var files []models.LocalFile
	for _, n := range names {
		p := filepath.Join(dir, n)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			require.NoError(t, os.WriteFile(p, []byte("doc "+n), 0644))
		}
		f, err := models.NewLocalFile(p)
		require.NoError(t, err)
		files = append(files, f)
	}

	bus := events.NewEventBus(64)
	t.Cleanup(bus.Close)
	set := staging.NewSet(bus)
	set.Stage(files)

	return &fixture{
		set:     set,
		orch:    New(set, client, bus, nil, opts),
		backend: be,
		bus:     bus,
	}
}

func signedIn() session.Session {
	return session.SignedIn("kim")
}

func TestRunAllSucceedClearsSet(t *testing.T) {
	fx := newFixture(t, nil, Options{}, "a.pdf", "b.png", "c.jpg")
	require.NoError(t, fx.set.SetTag(1, models.TagTomato))

	out, err := fx.orch.Run(context.Background(), signedIn())
	require.NoError(t, err)

	require.True(t, out.Success())
	require.Equal(t, MessageSuccess, out.Message)
	require.Equal(t, 3, out.Succeeded)
	require.Equal(t, []string{"a.pdf", "b.png", "c.jpg"}, fx.backend.names())
	require.Equal(t, []string{"1", "11", "1"}, fx.backend.colors)
	require.Equal(t, 0, fx.set.Len())
	require.False(t, fx.set.ReviewOpen())
	require.NotEmpty(t, out.CommitID)
}

// A failure on item k means items after k are never sent and the set is unchanged.
func TestRunAbortsOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		aborted OutcomeKind
		message string
	}{
		{"unauthorized", nethttp.StatusUnauthorized, OutcomeAuthRequired, MessageAuthRequired},
		{"server error", nethttp.StatusInternalServerError, OutcomeFailure, MessageBatchFailure + " (b.png)"},
		{"forbidden", nethttp.StatusForbidden, OutcomeFailure, MessageBatchFailure + " (b.png)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, map[string]int{"b.png": tt.status}, Options{}, "a.pdf", "b.png", "c.jpg")
			before := fx.set.Items()

			out, err := fx.orch.Run(context.Background(), signedIn())
			require.NoError(t, err)

			require.False(t, out.Success())
			require.Equal(t, tt.aborted, out.AbortedBy)
			require.Equal(t, tt.message, out.Message)
			require.Equal(t, 1, out.Succeeded)
			require.Len(t, out.Items, 2)
			require.Equal(t, []string{"a.pdf", "b.png"}, fx.backend.names())
			require.Equal(t, before, fx.set.Items())

			failed, ok := out.Failed()
			require.True(t, ok)
			require.Equal(t, 1, failed.Index)
			require.Equal(t, tt.status == nethttp.StatusUnauthorized, api.IsAuthRequired(failed.Err))
		})
	}
}

func TestRunPruneSucceeded(t *testing.T) {
	fx := newFixture(t, map[string]int{"c.jpg": nethttp.StatusInternalServerError}, Options{PruneSucceeded: true}, "a.pdf", "b.png", "c.jpg", "d.pdf")

	out, err := fx.orch.Run(context.Background(), signedIn())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, out.AbortedBy)

	var left []string
	for _, it := range fx.set.Items() {
		left = append(left, it.File.Name)
	}
	require.Equal(t, []string{"c.jpg", "d.pdf"}, left)
}

func TestRunMissingFileIsFailure(t *testing.T) {
	fx := newFixture(t, nil, Options{}, "a.pdf", "b.png")
	items := fx.set.Items()
	require.NoError(t, os.Remove(items[0].File.Path))

	out, err := fx.orch.Run(context.Background(), signedIn())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, out.AbortedBy)
	require.Empty(t, fx.backend.names(), "later files must not be attempted")
	require.Equal(t, 2, fx.set.Len())
}

func TestRunEmptySetSendsNothing(t *testing.T) {
	fx := newFixture(t, nil, Options{})

	out, err := fx.orch.Run(context.Background(), signedIn())
	require.NoError(t, err)
	require.False(t, out.Success())
	require.Equal(t, MessageNothingStaged, out.Message)
	require.Empty(t, fx.backend.names())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	fx := newFixture(t, nil, Options{}, "a.pdf", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := fx.orch.Run(ctx, signedIn())
	require.NoError(t, err)
	require.Equal(t, OutcomeCancelled, out.AbortedBy)
	require.Equal(t, MessageCancelled, out.Message)
	require.Empty(t, fx.backend.names())
	require.Equal(t, 2, fx.set.Len())
}

func TestRunNoEventsIsWarning(t *testing.T) {
	stub := &stubUploader{result: &models.UploadResult{Status: models.UploadStatusError, Message: "No events found"}}
	set := staging.NewSet(nil)
	set.Stage([]models.LocalFile{{Path: "/x/a.pdf", Name: "a.pdf"}})

	out, err := New(set, stub, nil, nil, Options{}).Run(context.Background(), signedIn())
	require.NoError(t, err)
	require.True(t, out.Success())
	require.Equal(t, []string{"a.pdf: No events found"}, out.Warnings())
	require.Equal(t, 0, set.Len())
}

func TestRunPublishesEvents(t *testing.T) {
	fx := newFixture(t, nil, Options{}, "a.pdf", "b.png")
	done := fx.bus.Subscribe(events.EventUploadCompleted)
	items := fx.bus.Subscribe(events.EventUploadItemSucceeded)

	out, err := fx.orch.Run(context.Background(), signedIn())
	require.NoError(t, err)

	select {
	case ev := <-done:
		ce := ev.(*events.UploadCompletedEvent)
		require.Equal(t, out.CommitID, ce.CommitID)
		require.Equal(t, "success", ce.Outcome)
		require.Equal(t, 2, ce.Succeeded)
		require.Empty(t, ce.FailedFile)
	case <-time.After(time.Second):
		t.Fatal("missing upload_completed event")
	}
	require.Len(t, items, 2)
}

func TestRunCompletedEventNamesFailedFile(t *testing.T) {
	fx := newFixture(t, map[string]int{"b.png": 500}, Options{}, "a.pdf", "b.png", "c.jpg")
	done := fx.bus.Subscribe(events.EventUploadCompleted)
	failedPath := fx.set.Items()[1].File.Path

	out, err := fx.orch.Run(context.Background(), signedIn())
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, out.AbortedBy)

	select {
	case ev := <-done:
		ce := ev.(*events.UploadCompletedEvent)
		require.Equal(t, "failure", ce.Outcome)
		require.Equal(t, 1, ce.Succeeded)
		require.Equal(t, failedPath, ce.FailedFile)
	case <-time.After(time.Second):
		t.Fatal("missing upload_completed event")
	}
}

type stubUploader struct {
	mu      sync.Mutex
	calls   []api.UploadRequest
	result  *models.UploadResult
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (s *stubUploader) UploadDocument(ctx context.Context, up api.UploadRequest) (*models.UploadResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, up)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, &api.UploadError{File: up.File.Name, Err: ctx.Err()}
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &models.UploadResult{Status: models.UploadStatusSuccess}, nil
}

// A second commit while one is running is rejected without side effects.
func TestRunRejectsConcurrentCommit(t *testing.T) {
	stub := &stubUploader{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	set := staging.NewSet(nil)
	set.Stage([]models.LocalFile{{Path: "/x/a.pdf", Name: "a.pdf"}, {Path: "/x/b.pdf", Name: "b.pdf"}})
	orch := New(set, stub, nil, nil, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	var first *BatchOutcome
	go func() {
		defer wg.Done()
		first, _ = orch.Run(context.Background(), signedIn())
	}()

	<-stub.entered
	require.True(t, orch.Busy())
	_, err := orch.Run(context.Background(), signedIn())
	require.ErrorIs(t, err, ErrCommitInProgress)
	require.Equal(t, 2, set.Len())

	stub.entered = nil
	close(stub.block)
	wg.Wait()

	require.True(t, first.Success())
	require.False(t, orch.Busy())
	require.Len(t, stub.calls, 2)
	require.Equal(t, stub.calls[0].CommitID, stub.calls[1].CommitID)
}

func TestRunCancelledMidUpload(t *testing.T) {
	stub := &stubUploader{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	set := staging.NewSet(nil)
	set.Stage([]models.LocalFile{{Path: "/x/a.pdf", Name: "a.pdf"}, {Path: "/x/b.pdf", Name: "b.pdf"}})
	orch := New(set, stub, nil, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stub.entered
		cancel()
	}()

	out, err := orch.Run(ctx, signedIn())
	require.NoError(t, err)
	require.Equal(t, OutcomeCancelled, out.AbortedBy)
	require.Len(t, stub.calls, 1)
	require.Equal(t, 2, set.Len())
}

func TestClassify(t *testing.T) {
	item := models.StagedFile{File: models.LocalFile{Name: "a.pdf"}, Tag: models.DefaultTag}

	require.Equal(t, OutcomeSuccess, classify(0, item, &models.UploadResult{}, nil).Kind)
	require.Equal(t, OutcomeAuthRequired, classify(0, item, nil, &api.UploadError{StatusCode: 401}).Kind)
	require.Equal(t, OutcomeFailure, classify(0, item, nil, &api.UploadError{StatusCode: 500}).Kind)
	require.Equal(t, OutcomeFailure, classify(0, item, nil, errors.New("dial tcp: refused")).Kind)
	require.Equal(t, OutcomeCancelled, classify(0, item, nil, &api.UploadError{Err: context.Canceled}).Kind)
}
