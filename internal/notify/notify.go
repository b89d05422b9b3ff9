// Package notify carries user-facing success and failure notifications.
// Every externally visible operation reports its outcome here exactly
// once; duplicate notifications for one logical operation are a defect.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Notifier receives one notification per completed operation
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Console writes colored notifications to a terminal
type Console struct {
	out io.Writer
}

var _ Notifier = (*Console)(nil)

// NewConsole creates a console notifier writing to stderr
func NewConsole() *Console {
	return &Console{out: os.Stderr}
}

// NewConsoleWriter creates a console notifier writing to w
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Success prints a green success line
func (c *Console) Success(message string) {
	fmt.Fprintln(c.out, color.GreenString("✓ %s", message))
}

// Error prints a red failure line
func (c *Console) Error(message string) {
	fmt.Fprintln(c.out, color.RedString("✗ %s", message))
}

// Info prints a neutral line
func (c *Console) Info(message string) {
	fmt.Fprintln(c.out, color.CyanString("• %s", message))
}

// Event is one recorded notification
type Event struct {
	Level   string // "success", "error", "info"
	Message string
}

// Recorder captures notifications for tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Notifier = (*Recorder)(nil)

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(message string) { r.record("success", message) }
func (r *Recorder) Error(message string)   { r.record("error", message) }
func (r *Recorder) Info(message string)    { r.record("info", message) }

func (r *Recorder) record(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Level: level, Message: message})
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Discard ignores all notifications
type Discard struct{}

var _ Notifier = Discard{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
func (Discard) Info(string)    {}
