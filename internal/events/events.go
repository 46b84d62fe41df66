// Package events provides a small in-process pub/sub bus used to observe
// staging, session and upload activity.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/firstbutton/docucal/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"

	// Staging set changes
	EventStagingChanged EventType = "staging_changed" // Items replaced, retagged, removed or cleared
	EventReviewOpened   EventType = "review_opened"   // Set went from empty to non-empty
	EventReviewClosed   EventType = "review_closed"   // Set went from non-empty to empty

	// Session snapshot recomputed (start-up, sign-in, sign-out)
	EventSessionChanged EventType = "session_changed"

	// Commit lifecycle
	EventUploadStarted       EventType = "upload_started"        // Commit accepted, loop about to run
	EventUploadItemStarted   EventType = "upload_item_started"   // Request for one file about to be sent
	EventUploadItemSucceeded EventType = "upload_item_succeeded" // 2xx for one file
	EventUploadItemFailed    EventType = "upload_item_failed"    // Non-2xx or transport error for one file
	EventUploadCompleted     EventType = "upload_completed"      // Loop finished, aborted or cancelled
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents user-facing messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Error   error
}

// ProgressEvent represents byte progress for the file currently being sent
type ProgressEvent struct {
	BaseEvent
	Name         string
	BytesCurrent int64
	BytesTotal   int64
}

// StagingEvent carries the staging set size after a change
type StagingEvent struct {
	BaseEvent
	Count int
}

// SessionEvent carries a fresh session snapshot
type SessionEvent struct {
	BaseEvent
	Authenticated bool
	DisplayName   string
}

// UploadEvent describes one step of a commit.
// Index, Name and Tag are only set for per-item events.
type UploadEvent struct {
	BaseEvent
	CommitID string
	Index    int
	Total    int
	Name     string
	Tag      int
	Created  int // Calendar events the backend reported creating
	Error    error
}

// UploadCompletedEvent summarises a finished commit
type UploadCompletedEvent struct {
	BaseEvent
	CommitID  string
	Total     int
	Succeeded int
	Outcome   string // "success", "auth_required", "failure", "cancelled"
	Message   string
	// FailedFile is the path of the file that stopped the commit, if any
	FailedFile string
	Duration   time.Duration
}

// subscription is one subscriber channel and the event types it receives.
// A nil types set receives every event.
type subscription struct {
	ch    chan Event
	types map[EventType]bool
}

func (s *subscription) wants(t EventType) bool {
	return s.types == nil || s.types[t]
}

// EventBus fans events out to buffered subscriber channels. Publishing never
// blocks: an event for a full channel is dropped and counted.
type EventBus struct {
	subs          []*subscription
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe returns a channel receiving events of the given types, or every
// event when none are given. The channel is closed by Close or Unsubscribe.
func (eb *EventBus) Subscribe(types ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := &subscription{ch: make(chan Event, eb.bufferSize)}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	eb.subs = append(eb.subs, sub)
	return sub.ch
}

// Publish sends an event to every interested subscriber without blocking.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, sub := range eb.subs {
		if !sub.wants(event.Type()) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, sub := range eb.subs {
		close(sub.ch)
	}
	eb.subs = nil
}

// Unsubscribe removes and closes a subscription channel.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for i, sub := range eb.subs {
		if sub.ch == ch {
			close(sub.ch)
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			return
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: newBase(EventLog),
		Level:     level,
		Message:   message,
		Error:     err,
	})
}

// PublishProgress is a convenience method for publishing byte progress
func (eb *EventBus) PublishProgress(name string, current, total int64) {
	eb.Publish(&ProgressEvent{
		BaseEvent:    newBase(EventProgress),
		Name:         name,
		BytesCurrent: current,
		BytesTotal:   total,
	})
}

// PublishStaging publishes a staging change and, when the set crossed the
// empty/non-empty boundary, the matching review open/close event.
func (eb *EventBus) PublishStaging(before, after int) {
	eb.Publish(&StagingEvent{BaseEvent: newBase(EventStagingChanged), Count: after})

	switch {
	case before == 0 && after > 0:
		eb.Publish(&StagingEvent{BaseEvent: newBase(EventReviewOpened), Count: after})
	case before > 0 && after == 0:
		eb.Publish(&StagingEvent{BaseEvent: newBase(EventReviewClosed), Count: after})
	}
}

// PublishSession publishes a session snapshot
func (eb *EventBus) PublishSession(authenticated bool, displayName string) {
	eb.Publish(&SessionEvent{
		BaseEvent:     newBase(EventSessionChanged),
		Authenticated: authenticated,
		DisplayName:   displayName,
	})
}

// PublishUpload publishes one commit lifecycle step
func (eb *EventBus) PublishUpload(eventType EventType, ev UploadEvent) {
	ev.BaseEvent = newBase(eventType)
	eb.Publish(&ev)
}

// PublishUploadCompleted publishes the end of a commit
func (eb *EventBus) PublishUploadCompleted(ev UploadCompletedEvent) {
	ev.BaseEvent = newBase(EventUploadCompleted)
	eb.Publish(&ev)
}
