// Package progress reports per-document upload progress to a terminal
// (progress bars) or to the event bus.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/firstbutton/docucal/internal/events"
)

// Reporter receives progress for a single document transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// Factory returns a reporter for item index (0-based) of total.
type Factory func(index, total int) Reporter

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewTerminalFactory returns progress bars on w when it is a terminal.
// Otherwise progress goes to eventBus, or nowhere when eventBus is nil.
func NewTerminalFactory(w io.Writer, eventBus *events.EventBus) Factory {
	if !IsTerminal(w) {
		if eventBus != nil {
			return func(int, int) Reporter { return NewBusProgress(eventBus) }
		}
		return func(int, int) Reporter { return NewNoOpProgress() }
	}
	return func(index, total int) Reporter {
		p := NewCLIProgress(w)
		p.prefix = fmt.Sprintf("[%d/%d] ", index+1, total)
		return p
	}
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	out    io.Writer
	prefix string
	bar    *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	if out == nil {
		out = os.Stderr
	}
	return &CLIProgress{out: out}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(p.prefix+description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error abandons the bar; the caller prints the failure itself.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil && err != nil {
		_ = p.bar.Exit()
		fmt.Fprint(p.out, "\n")
	}
}

func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(p.prefix + desc)
	}
}

// BusProgress publishes progress to the event bus.
type BusProgress struct {
	eventBus *events.EventBus

	mu      sync.Mutex
	name    string
	total   int64
	current int64
}

// NewBusProgress creates a reporter that publishes ProgressEvents.
func NewBusProgress(eventBus *events.EventBus) *BusProgress {
	return &BusProgress{eventBus: eventBus}
}

func (p *BusProgress) Start(total int64, description string) {
	p.mu.Lock()
	p.name, p.total, p.current = description, total, 0
	p.mu.Unlock()
	p.eventBus.PublishProgress(description, 0, total)
}

func (p *BusProgress) Update(current int64) {
	p.mu.Lock()
	p.current = current
	name, total := p.name, p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(name, current, total)
}

func (p *BusProgress) Finish() {
	p.mu.Lock()
	name, total := p.name, p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(name, total, total)
}

func (p *BusProgress) Error(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	name := p.name
	p.mu.Unlock()
	p.eventBus.PublishLog(events.ErrorLevel, "transfer failed: "+name, err)
}

func (p *BusProgress) SetDescription(desc string) {
	p.mu.Lock()
	p.name = desc
	current, total := p.current, p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(desc, current, total)
}

// NoOpProgress is a progress reporter that does nothing.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	total    int64
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
		total:    total,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.reporter.Update(pr.current)
	}
	return n, err
}
