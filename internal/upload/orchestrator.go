// Package upload drains a staging set against the backend, one document at
// a time, in selection order.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/firstbutton/docucal/internal/api"
	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/logging"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/progress"
	"github.com/firstbutton/docucal/internal/session"
	"github.com/firstbutton/docucal/internal/staging"
)

// ErrCommitInProgress is returned when Run is called while another commit
// is still running.
var ErrCommitInProgress = errors.New("a commit is already in progress")

// User-facing batch messages
const (
	MessageSuccess       = "All events were registered successfully."
	MessageAuthRequired  = "Login required. Please sign in first."
	MessageBatchFailure  = "Some files failed to process."
	MessageCancelled     = "Upload cancelled."
	MessageNothingStaged = "Nothing to upload."
)

// Uploader submits one document. *api.Client implements it.
type Uploader interface {
	UploadDocument(ctx context.Context, up api.UploadRequest) (*models.UploadResult, error)
}

// Options tunes an Orchestrator.
type Options struct {
	// PruneSucceeded drops already-submitted items from the set when a
	// commit aborts part-way.
	PruneSucceeded bool
	// Progress builds a reporter per item; nil means silent.
	Progress progress.Factory
}

// Orchestrator commits the staging set.
type Orchestrator struct {
	set      *staging.Set
	client   Uploader
	eventBus *events.EventBus
	logger   *logging.Logger
	opts     Options

	busy atomic.Bool
}

// New creates an orchestrator over set. eventBus and logger may be nil.
func New(set *staging.Set, client Uploader, eventBus *events.EventBus, logger *logging.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.Progress == nil {
		opts.Progress = func(int, int) progress.Reporter { return progress.NewNoOpProgress() }
	}
	return &Orchestrator{
		set:      set,
		client:   client,
		eventBus: eventBus,
		logger:   logger,
		opts:     opts,
	}
}

// Busy reports whether a commit is running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Run submits every staged item in order and waits for each response before
// sending the next. The first 401, non-2xx, or transport error aborts the
// rest. On full success the set is cleared; otherwise it is left as it was
// (minus the submitted prefix when PruneSucceeded is set).
//
// The caller is expected to have checked sess.Authenticated(); the backend
// is the final judge and a 401 is reported as OutcomeAuthRequired.
func (o *Orchestrator) Run(ctx context.Context, sess session.Session) (*BatchOutcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrCommitInProgress
	}
	defer o.busy.Store(false)

	start := time.Now()
	items := o.set.Items()
	batch := &BatchOutcome{
		CommitID: uuid.NewString(),
		Total:    len(items),
	}

	if len(items) == 0 {
		batch.Message = MessageNothingStaged
		return batch, nil
	}

	log := o.logger.With().
		Str("commit_id", batch.CommitID).
		Int("files", batch.Total).
		Str("user", sess.DisplayName()).
		Logger()
	log.Info().Msg("Starting upload")
	o.publish(events.EventUploadStarted, events.UploadEvent{CommitID: batch.CommitID, Total: batch.Total})

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			batch.abort(OutcomeCancelled, MessageCancelled)
			log.Warn().Int("remaining", len(items)-i).Msg("Upload cancelled")
			break
		}

		o.publish(events.EventUploadItemStarted, o.itemEvent(batch, i, item, 0, nil))

		res, err := o.client.UploadDocument(ctx, api.UploadRequest{
			File:     item.File,
			Tag:      item.Tag,
			CommitID: batch.CommitID,
			Progress: o.opts.Progress(i, len(items)),
		})

		outcome := classify(i, item, res, err)
		batch.Items = append(batch.Items, outcome)

		if outcome.Kind != OutcomeSuccess {
			o.publish(events.EventUploadItemFailed, o.itemEvent(batch, i, item, 0, outcome.Err))
			log.Error().Err(outcome.Err).Str("file", item.File.Name).Int("index", i).Msg("Upload aborted")

			switch outcome.Kind {
			case OutcomeAuthRequired:
				batch.abort(OutcomeAuthRequired, MessageAuthRequired)
			case OutcomeCancelled:
				batch.abort(OutcomeCancelled, MessageCancelled)
			default:
				batch.abort(OutcomeFailure, fmt.Sprintf("%s (%s)", MessageBatchFailure, item.File.Name))
			}
			break
		}

		batch.Succeeded++
		if outcome.Warning != "" {
			log.Warn().Str("file", item.File.Name).Msg(outcome.Warning)
		}
		o.publish(events.EventUploadItemSucceeded, o.itemEvent(batch, i, item, outcome.Created(), nil))
	}

	if batch.AbortedBy == OutcomeSuccess {
		batch.Message = MessageSuccess
		o.set.Clear()
	} else if o.opts.PruneSucceeded && batch.Succeeded > 0 {
		o.set.DropLeading(batch.Succeeded)
	}

	batch.Duration = time.Since(start)
	log.Info().
		Int("succeeded", batch.Succeeded).
		Str("outcome", batch.AbortedBy.String()).
		Dur("elapsed", batch.Duration).
		Msg("Upload finished")

	if o.eventBus != nil {
		completed := events.UploadCompletedEvent{
			CommitID:  batch.CommitID,
			Total:     batch.Total,
			Succeeded: batch.Succeeded,
			Outcome:   batch.AbortedBy.String(),
			Message:   batch.Message,
			Duration:  batch.Duration,
		}
		if failed, ok := batch.Failed(); ok {
			completed.FailedFile = failed.File.File.Path
		}
		o.eventBus.PublishUploadCompleted(completed)
	}
	return batch, nil
}

func classify(index int, item models.StagedFile, res *models.UploadResult, err error) ItemOutcome {
	out := ItemOutcome{Index: index, File: item, Result: res, Err: err}
	switch {
	case err == nil:
		out.Kind = OutcomeSuccess
		if res != nil && res.NoEvents() {
			out.Warning = fmt.Sprintf("%s: no events found", item.File.Name)
			if res.Message != "" {
				out.Warning = fmt.Sprintf("%s: %s", item.File.Name, res.Message)
			}
		}
	case api.IsAuthRequired(err):
		out.Kind = OutcomeAuthRequired
	case errors.Is(err, context.Canceled):
		out.Kind = OutcomeCancelled
	default:
		out.Kind = OutcomeFailure
	}
	return out
}

func (o *Orchestrator) itemEvent(batch *BatchOutcome, i int, item models.StagedFile, created int, err error) events.UploadEvent {
	return events.UploadEvent{
		CommitID: batch.CommitID,
		Index:    i,
		Total:    batch.Total,
		Name:     item.File.Name,
		Tag:      int(item.Tag),
		Created:  created,
		Error:    err,
	}
}

func (o *Orchestrator) publish(t events.EventType, ev events.UploadEvent) {
	if o.eventBus != nil {
		o.eventBus.PublishUpload(t, ev)
	}
}
