// Package logging provides the injected log collaborator the
// predictors report through, with an optional SQLite trace store for
// post-hoc inspection of a decoding run. There is no ambient global
// logger; every component receives its Log at construction.
package logging

import (
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
)

// #region log
// Log writes leveled events for one named component. Warnings and
// errors from predictors never abort a decoding session; they surface
// here and through the empty-distribution contract.
type Log struct {
	out   *log.Logger
	trace *TraceStore
	name  string

	sessionID string
	sequence  int
}

// New returns a Log writing to w.
func New(w io.Writer) *Log {
	return &Log{
		out:       log.New(w, "", log.LstdFlags),
		sessionID: uuid.New().String(),
	}
}

// Discard returns a Log that drops everything. For tests.
func Discard() *Log {
	return New(io.Discard)
}

// WithTrace mirrors every event into a trace store.
func (l *Log) WithTrace(store *TraceStore) *Log {
	clone := *l
	clone.trace = store
	return &clone
}

// Named returns a Log labeled with a component name.
func (l *Log) Named(name string) *Log {
	clone := *l
	clone.name = name
	return &clone
}

// SetSequence stamps subsequent events with the 1-based sequence index.
// Predictors call this at Initialize.
func (l *Log) SetSequence(n int) {
	l.sequence = n
}

// NewSession rotates the session id stamped on trace rows.
func (l *Log) NewSession() {
	l.sessionID = uuid.New().String()
}

// SessionID returns the current session id.
func (l *Log) SessionID() string {
	return l.sessionID
}

// #endregion log

// #region levels
// Debugf records a debug event.
func (l *Log) Debugf(format string, args ...interface{}) {
	l.event("debug", format, args...)
}

// Warnf records a warning.
func (l *Log) Warnf(format string, args ...interface{}) {
	l.event("warn", format, args...)
}

// Errorf records an error.
func (l *Log) Errorf(format string, args ...interface{}) {
	l.event("error", format, args...)
}

func (l *Log) event(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		l.out.Printf("[%s] %s: %s", level, l.name, msg)
	} else {
		l.out.Printf("[%s] %s", level, msg)
	}
	if l.trace != nil {
		// Trace failures must not disturb decoding; report and move on.
		if err := l.trace.Append(TraceEntry{
			SessionID: l.sessionID,
			Sequence:  l.sequence,
			Predictor: l.name,
			Level:     level,
			Message:   msg,
		}); err != nil {
			l.out.Printf("[error] trace append: %v", err)
		}
	}
}

// #endregion levels
