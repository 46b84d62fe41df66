package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)

	bus.PublishProgress("scan.pdf", 512, 1024)

	select {
	case received := <-ch:
		progress, ok := received.(*ProgressEvent)
		if !ok {
			t.Fatal("Expected ProgressEvent")
		}
		if progress.Name != "scan.pdf" {
			t.Errorf("Expected name 'scan.pdf', got '%s'", progress.Name)
		}
		if progress.BytesCurrent != 512 || progress.BytesTotal != 1024 {
			t.Errorf("Expected 512/1024, got %d/%d", progress.BytesCurrent, progress.BytesTotal)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	progressCh := bus.Subscribe(EventProgress)
	logCh := bus.Subscribe(EventLog)

	bus.PublishProgress("a.png", 1, 1)

	select {
	case <-progressCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Progress subscriber didn't receive event")
	}

	select {
	case <-logCh:
		t.Error("Log subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeEverything(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.Subscribe()

	bus.PublishProgress("a.png", 1, 1)
	bus.PublishLog(InfoLevel, "hello", nil)

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)

	for i := 0; i < 10; i++ {
		bus.PublishProgress("a.png", int64(i), 10)
	}

	if bus.GetDroppedEventCount() != 8 {
		t.Errorf("Expected 8 dropped events, got %d", bus.GetDroppedEventCount())
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("Expected 2 buffered events, got %d", count)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventProgress)

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishProgress("a.png", 1, 1)

	late := bus.Subscribe(EventLog)
	if _, ok := <-late; ok {
		t.Error("Subscribing after Close should return a closed channel")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventLog)
	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)

	bus.PublishLog(WarnLevel, "ignored", nil)

	if _, ok := <-ch; ok {
		t.Error("Unsubscribed channel received an event")
	}
}

func TestEventBus_SubscribeSeveralTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventLog, EventProgress)

	bus.PublishLog(InfoLevel, "one", nil)
	bus.PublishProgress("a.pdf", 5, 10)
	bus.PublishStaging(0, 1)

	got := make([]EventType, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev.Type())
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("received %v, want two events", got)
		}
	}
	if got[0] != EventLog || got[1] != EventProgress {
		t.Errorf("received %v, want [log progress]", got)
	}

	select {
	case ev := <-ch:
		t.Errorf("unexpected %s event", ev.Type())
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPublishStaging_ReviewTransitions(t *testing.T) {
	tests := []struct {
		name       string
		before     int
		after      int
		wantOpen   bool
		wantClosed bool
	}{
		{"empty to staged", 0, 3, true, false},
		{"staged to empty", 2, 0, false, true},
		{"staged to staged", 2, 1, false, false},
		{"empty to empty", 0, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewEventBus(10)
			defer bus.Close()

			changed := bus.Subscribe(EventStagingChanged)
			opened := bus.Subscribe(EventReviewOpened)
			closed := bus.Subscribe(EventReviewClosed)

			bus.PublishStaging(tt.before, tt.after)

			select {
			case ev := <-changed:
				if ev.(*StagingEvent).Count != tt.after {
					t.Errorf("Count = %d, want %d", ev.(*StagingEvent).Count, tt.after)
				}
			case <-time.After(50 * time.Millisecond):
				t.Fatal("missing staging_changed event")
			}

			if got := len(opened) == 1; got != tt.wantOpen {
				t.Errorf("review_opened published = %v, want %v", got, tt.wantOpen)
			}
			if got := len(closed) == 1; got != tt.wantClosed {
				t.Errorf("review_closed published = %v, want %v", got, tt.wantClosed)
			}
		})
	}
}

func TestPublishUpload(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	failed := bus.Subscribe(EventUploadItemFailed)
	done := bus.Subscribe(EventUploadCompleted)

	cause := errors.New("boom")
	bus.PublishUpload(EventUploadItemFailed, UploadEvent{CommitID: "c1", Index: 1, Total: 3, Name: "b.pdf", Error: cause})
	bus.PublishUploadCompleted(UploadCompletedEvent{CommitID: "c1", Total: 3, Succeeded: 1, Outcome: "failure"})

	ev := (<-failed).(*UploadEvent)
	if ev.Type() != EventUploadItemFailed || ev.Name != "b.pdf" || !errors.Is(ev.Error, cause) {
		t.Errorf("unexpected item event: %+v", ev)
	}
	if ev.Timestamp().IsZero() {
		t.Error("timestamp should be set")
	}

	completed := (<-done).(*UploadCompletedEvent)
	if completed.Succeeded != 1 || completed.Outcome != "failure" {
		t.Errorf("unexpected completed event: %+v", completed)
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}
