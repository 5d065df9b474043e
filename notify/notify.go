// Package notify turns errors into user-visible notices. Errors are caught
// where they happen and shown; none of them takes a view down.
package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rustyeddy/fxdesk/orders"
	"github.com/rustyeddy/fxdesk/session"
)

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Kind groups notices so a view can style them.
type Kind string

const (
	KindTransient Kind = "transient"
	KindRejected  Kind = "rejected"
	KindSession   Kind = "session"
	KindInternal  Kind = "internal"
	KindGeneral   Kind = "general"
)

// FallbackMessage is shown when a view fails in a way it did not handle.
const FallbackMessage = "Something went wrong. Please try again."

// Notice is one toast or banner.
type Notice struct {
	Level   Level             `json:"level"`
	Kind    Kind              `json:"kind"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Reason  orders.RejectKind `json:"reason,omitempty"`
	Time    time.Time         `json:"time"`
}

func (n Notice) String() string {
	if n.Title == "" {
		return fmt.Sprintf("[%s] %s", n.Level, n.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", n.Level, n.Title, n.Message)
}

// transient is implemented by network errors that are worth retrying.
type transient interface {
	Transient() bool
}

var rejectTitles = map[orders.RejectKind]string{
	orders.RejectInsufficientMargin: "Insufficient margin",
	orders.RejectVolumeStep:         "Invalid volume step",
	orders.RejectVolumeRange:        "Volume out of range",
	orders.RejectValidation:         "Invalid request",
	orders.RejectGeneric:            "Order rejected",
}

// FromError maps an error to a notice. It returns false for nil and for
// cancellations, which the user caused and does not need to be told about.
func FromError(err error) (Notice, bool) {
	if err == nil || errors.Is(err, context.Canceled) {
		return Notice{}, false
	}
	n := Notice{Time: time.Now()}

	var rej *orders.RejectError
	var tr transient
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		n.Level, n.Kind = Error, KindSession
		n.Title = "Signed out"
		n.Message = "Your session has ended. Please sign in again."
	case errors.As(err, &rej):
		n.Level, n.Kind, n.Reason = Warning, KindRejected, rej.Kind
		n.Title = rejectTitles[rej.Kind]
		if n.Title == "" {
			n.Title = rejectTitles[orders.RejectGeneric]
		}
		n.Message = rej.Message
	case errors.As(err, &tr) && tr.Transient(), errors.Is(err, context.DeadlineExceeded):
		n.Level, n.Kind = Warning, KindTransient
		n.Title = "Connection problem"
		n.Message = "Could not reach the server. Retrying shortly."
	default:
		n.Level, n.Kind = Error, KindGeneral
		n.Message = err.Error()
	}
	return n, true
}

// Center collects notices and fans them out to subscribers.
type Center struct {
	mu     sync.Mutex
	recent []Notice
	keep   int
	subs   []func(Notice)
}

// NewCenter keeps the last keep notices.
func NewCenter(keep int) *Center {
	if keep <= 0 {
		keep = 50
	}
	return &Center{keep: keep}
}

// Subscribe registers fn for every future notice.
func (c *Center) Subscribe(fn func(Notice)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Center) Notify(n Notice) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	c.mu.Lock()
	c.recent = append(c.recent, n)
	if len(c.recent) > c.keep {
		c.recent = c.recent[len(c.recent)-c.keep:]
	}
	subs := append([]func(Notice){}, c.subs...)
	c.mu.Unlock()

	entry := logger.WithFields(logger.Fields{"kind": n.Kind, "title": n.Title})
	switch n.Level {
	case Error:
		entry.Error(n.Message)
	case Warning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
	for _, fn := range subs {
		fn(n)
	}
}

// Report converts err and notifies. It returns whether a notice was sent.
func (c *Center) Report(err error) bool {
	n, ok := FromError(err)
	if ok {
		c.Notify(n)
	}
	return ok
}

// Recent returns a copy of the retained notices, oldest first.
func (c *Center) Recent() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.recent...)
}

// ErrPanic wraps a recovered panic.
var ErrPanic = errors.New("view panicked")

// Recovered handles a panic recovered from view name: it logs the value
// with its stack, sends the generic fallback notice and returns an error
// wrapping ErrPanic. Call it from the deferred function that recovered.
func (c *Center) Recovered(name string, r any) error {
	logger.WithFields(logger.Fields{
		"view":  name,
		"panic": r,
		"stack": string(debug.Stack()),
	}).Error("recovered panic")
	c.Notify(Notice{Level: Error, Kind: KindInternal, Message: FallbackMessage})
	return fmt.Errorf("%s: %w: %v", name, ErrPanic, r)
}

// Guard runs fn as a top-level boundary: errors are reported, and a panic is
// recovered and replaced by the generic fallback notice. The error is still
// returned so the caller can exit non-zero. Goroutines a view starts are
// covered by their scope's panic hook, not by Guard.
func (c *Center) Guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = c.Recovered(name, r)
		}
	}()

	if err = fn(); err != nil {
		c.Report(err)
	}
	return err
}
