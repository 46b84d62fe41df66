package upload

import (
	"time"

	"github.com/firstbutton/docucal/internal/models"
)

// OutcomeKind classifies one submission or a whole commit.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeAuthRequired
	OutcomeFailure
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAuthRequired:
		return "auth_required"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ItemOutcome is the result of one attempted submission.
type ItemOutcome struct {
	Index  int
	File   models.StagedFile
	Kind   OutcomeKind
	Result *models.UploadResult // nil unless the backend answered 2xx
	Err    error
	// Warning is set when the backend accepted the document but found no events
	Warning string
}

// Created is the number of calendar events the backend reported.
func (o ItemOutcome) Created() int {
	if o.Result == nil {
		return 0
	}
	return o.Result.Count
}

// BatchOutcome summarises a commit. Items holds one entry per attempted file;
// files after an abort are not attempted and have no entry.
type BatchOutcome struct {
	CommitID  string
	Items     []ItemOutcome
	Total     int
	Succeeded int
	// AbortedBy is OutcomeSuccess when every file went through
	AbortedBy OutcomeKind
	Message   string
	Duration  time.Duration
}

// Success reports whether every staged file was accepted.
func (b *BatchOutcome) Success() bool {
	return b.AbortedBy == OutcomeSuccess && b.Succeeded == b.Total && b.Total > 0
}

// Warnings collects the per-item no-events notices.
func (b *BatchOutcome) Warnings() []string {
	var out []string
	for _, it := range b.Items {
		if it.Warning != "" {
			out = append(out, it.Warning)
		}
	}
	return out
}

// Failed returns the outcome that aborted the commit, if any.
func (b *BatchOutcome) Failed() (ItemOutcome, bool) {
	for _, it := range b.Items {
		if it.Kind != OutcomeSuccess {
			return it, true
		}
	}
	return ItemOutcome{}, false
}

func (b *BatchOutcome) abort(kind OutcomeKind, message string) {
	b.AbortedBy = kind
	b.Message = message
}
