package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	nethttp "net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/firstbutton/docucal/internal/config"
	"github.com/firstbutton/docucal/internal/constants"
	"github.com/firstbutton/docucal/internal/http"
	"github.com/firstbutton/docucal/internal/logging"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/progress"
	"github.com/firstbutton/docucal/internal/util/buffers"
	"github.com/firstbutton/docucal/internal/validation"
	"github.com/firstbutton/docucal/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Request-level chatter is only useful when debugging
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to the document ingestion backend.
type Client struct {
	rc             *retryablehttp.Client
	baseURL        string
	base           *url.URL
	requestTimeout time.Duration
	logger         *logging.Logger
}

// NewClient creates a backend client. jar supplies the session cookie on
// every request and records any cookie the backend sets.
func NewClient(cfg *config.Config, jar nethttp.CookieJar, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.NewUploadClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	httpClient.Jar = jar

	// Only connection failures are retried: an upload that reached the server
	// may already have created events, so it is never replayed.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.MaxDialRetries
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.CheckRetry = dialOnlyRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}

	return &Client{
		rc:             retryClient,
		baseURL:        base.String(),
		base:           base,
		requestTimeout: timeout,
		logger:         logger,
	}, nil
}

// BaseURL returns the parsed backend address (cookie scope).
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// dialOnlyRetryPolicy retries when no connection could be made and passes
// every response, whatever its status, straight back to the caller.
func dialOnlyRetryPolicy(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return true, nil
	}
	return false, nil
}

// LoginURL fetches the external sign-in URL.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.LoginURLTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, c.baseURL+constants.LoginPath, nil)
	if err != nil {
		return "", &LoginURLError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.rc.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", constants.LoginPath).Msg("Login URL request failed")
		return "", &LoginURLError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &LoginURLError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(trimBody(body)),
		}
	}

	var out models.LoginURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &LoginURLError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return out.URL, nil
}

// UploadRequest is one document submission.
type UploadRequest struct {
	File     models.LocalFile
	Tag      models.Tag
	CommitID string            // shared by every request in one commit
	Progress progress.Reporter // may be nil
}

// UploadDocument submits one document and waits for the backend's verdict.
//
// Returns *UploadError for transport failures and non-2xx responses; a 401
// additionally matches ErrAuthRequired. A 2xx is success even when the body
// reports that no events were found.
func (c *Client) UploadDocument(ctx context.Context, up UploadRequest) (*models.UploadResult, error) {
	name := up.File.Name
	if err := validation.ValidateFilename(name); err != nil {
		return nil, &UploadError{File: up.File.Path, Err: err}
	}
	if err := up.Tag.Validate(); err != nil {
		return nil, &UploadError{File: name, Err: err}
	}

	reporter := up.Progress
	if reporter == nil {
		reporter = progress.NewNoOpProgress()
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	boundary := multipart.NewWriter(io.Discard).Boundary()
	body := func() (io.Reader, error) {
		return newFormStream(boundary, func(mw *multipart.Writer) error {
			return writeUploadForm(mw, up, reporter)
		}), nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+constants.UploadPath, retryablehttp.ReaderFunc(body))
	if err != nil {
		return nil, &UploadError{File: name, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(constants.HeaderRequestID, requestID)
	if up.CommitID != "" {
		req.Header.Set(constants.HeaderCommitID, up.CommitID)
	}

	reporter.Start(up.File.Size, name)
	start := time.Now()

	resp, err := c.rc.Do(req)
	if err != nil {
		reporter.Error(err)
		c.logger.Error().Err(err).Str("file", name).Str("request_id", requestID).Msg("Upload request failed")
		return nil, &UploadError{File: name, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	c.logger.Debug().
		Str("file", name).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Upload response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ue := &UploadError{File: name, StatusCode: resp.StatusCode, Body: trimBody(raw)}
		reporter.Error(ue)
		return nil, ue
	}
	reporter.Finish()

	result := &models.UploadResult{Status: models.UploadStatusSuccess}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			c.logger.Debug().Err(err).Str("file", name).Msg("Upload response body is not JSON, treating as success")
			result = &models.UploadResult{Status: models.UploadStatusSuccess}
		}
	}
	return result, nil
}

// writeUploadForm writes the two fields the backend expects: the document
// under uploaded_file and the colour digit under event_color.
func writeUploadForm(mw *multipart.Writer, up UploadRequest, reporter progress.Reporter) error {
	f, err := os.Open(up.File.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", up.File.Path, err)
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fileDisposition(constants.FormFieldFile, up.File.Name))
	h.Set("Content-Type", contentTypeFor(up.File.Name))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := buffers.Copy(part, progress.NewProgressReader(f, up.File.Size, reporter)); err != nil {
		return err
	}

	return mw.WriteField(constants.FormFieldColor, up.Tag.WireValue())
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileDisposition builds the Content-Disposition of a file part, escaped the
// same way multipart.Writer.CreateFormFile does.
func fileDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}

func contentTypeFor(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// formStream streams a multipart body through a pipe. The producer starts on
// the first Read, so a body that is created and closed unread (retryablehttp
// probes ReaderFunc bodies once) never touches the file.
type formStream struct {
	boundary string
	build    func(mw *multipart.Writer) error

	once sync.Once
	pr   *io.PipeReader
}

func newFormStream(boundary string, build func(mw *multipart.Writer) error) *formStream {
	return &formStream{boundary: boundary, build: build}
}

func (s *formStream) start() {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	_ = mw.SetBoundary(s.boundary)
	s.pr = pr

	go func() {
		err := s.build(mw)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
}

func (s *formStream) Read(p []byte) (int, error) {
	s.once.Do(s.start)
	if s.pr == nil {
		return 0, io.ErrClosedPipe
	}
	return s.pr.Read(p)
}

func (s *formStream) Close() error {
	s.once.Do(func() {})
	if s.pr != nil {
		return s.pr.Close()
	}
	return nil
}
