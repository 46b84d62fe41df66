package progress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/firstbutton/docucal/internal/events"
)

type recorder struct {
	updates []int64
}

func (r *recorder) Start(total int64, description string) {}
func (r *recorder) Update(current int64)                  { r.updates = append(r.updates, current) }
func (r *recorder) Finish()                               {}
func (r *recorder) Error(err error)                       {}
func (r *recorder) SetDescription(desc string)            {}

func TestProgressReader(t *testing.T) {
	data := strings.Repeat("x", 10)
	rec := &recorder{}
	pr := NewProgressReader(iotestHalfReader{strings.NewReader(data)}, int64(len(data)), rec)

	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != data {
		t.Errorf("read %q, want %q", got, data)
	}
	if len(rec.updates) == 0 || rec.updates[len(rec.updates)-1] != 10 {
		t.Errorf("updates = %v, want final 10", rec.updates)
	}
	for i := 1; i < len(rec.updates); i++ {
		if rec.updates[i] < rec.updates[i-1] {
			t.Errorf("updates not monotonic: %v", rec.updates)
		}
	}
}

// iotestHalfReader returns at most half the requested bytes per call.
type iotestHalfReader struct{ r io.Reader }

func (h iotestHalfReader) Read(p []byte) (int, error) {
	return h.r.Read(p[0 : (len(p)+1)/2])
}

func TestTerminalFactoryNonTTY(t *testing.T) {
	var buf bytes.Buffer
	factory := NewTerminalFactory(&buf, nil)

	r := factory(0, 3)
	if _, ok := r.(*NoOpProgress); !ok {
		t.Fatalf("factory returned %T for a non-terminal writer, want *NoOpProgress", r)
	}
	r.Start(10, "a.pdf")
	r.Update(5)
	r.Finish()
	if buf.Len() != 0 {
		t.Errorf("non-terminal output = %q, want empty", buf.String())
	}
}

func TestTerminalFactoryNonTTYWithBus(t *testing.T) {
	bus := events.NewEventBus(4)
	defer bus.Close()

	r := NewTerminalFactory(&bytes.Buffer{}, bus)(1, 2)
	if _, ok := r.(*BusProgress); !ok {
		t.Fatalf("factory returned %T, want *BusProgress", r)
	}
}

func TestCLIProgressWritesBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgress(&buf)
	p.prefix = "[1/2] "
	p.Start(100, "scan.pdf")
	p.Update(100)
	p.Finish()

	if !strings.Contains(buf.String(), "[1/2] scan.pdf") {
		t.Errorf("bar output %q missing description", buf.String())
	}
}

func TestBusProgressPublishes(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Close()
	ch := bus.Subscribe(events.EventProgress)
	logs := bus.Subscribe(events.EventLog)

	p := NewBusProgress(bus)
	p.Start(20, "a.png")
	p.Update(10)
	p.Finish()
	p.Error(errors.New("boom"))

	want := []int64{0, 10, 20}
	for i, w := range want {
		select {
		case ev := <-ch:
			pe := ev.(*events.ProgressEvent)
			if pe.Name != "a.png" || pe.BytesCurrent != w || pe.BytesTotal != 20 {
				t.Errorf("event %d = %+v, want current %d", i, pe, w)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("missing progress event %d", i)
		}
	}

	select {
	case ev := <-logs:
		if ev.(*events.LogEvent).Level != events.ErrorLevel {
			t.Errorf("log level = %v, want error", ev.(*events.LogEvent).Level)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("missing error log event")
	}
}
