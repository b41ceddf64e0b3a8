// Package forms implements the submission flow shared by every form:
// validate locally, call the API once, report success or failure, and
// settle back to idle. The submitting flag is cleared on every path.
package forms

import (
	"errors"
	"sync"
	"time"
)

type Status int

const (
	Idle Status = iota
	Submitting
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("submission already in progress")

// Result is what a submission reports back to the page.
type Result struct {
	Status  Status
	Error   string
	Success string
	// Redirect is the navigation target after RedirectAfter.
	Redirect      string
	RedirectAfter time.Duration
	// AuthLost means the session ended and the user must log in again.
	AuthLost bool
}

// machine guards a form's status. After a success it returns to idle once
// the reset delay has passed; after a failure it returns at once.
type machine struct {
	mu     sync.Mutex
	status Status
	delay  time.Duration
	timer  *time.Timer
	after  func(time.Duration, func()) *time.Timer
}

func newMachine(delay time.Duration) *machine {
	return &machine{delay: delay, after: time.AfterFunc}
}

// begin moves to Submitting; it fails if a submission is in flight.
func (m *machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == Submitting {
		return ErrBusy
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.status = Submitting
	return nil
}

// fail settles straight back to Idle; the failure itself travels in the
// Result.
func (m *machine) fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == Submitting {
		m.status = Idle
	}
}

func (m *machine) succeed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = Succeeded
	m.timer = m.after(m.delay, m.reset)
}

func (m *machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == Succeeded {
		m.status = Idle
	}
	m.timer = nil
}

func (m *machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Submitting reports the loading flag that disables the submit button.
func (m *machine) Submitting() bool {
	return m.Status() == Submitting
}
