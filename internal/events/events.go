// Package events records the human-readable history of monitor operations.
package events

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fim/internal/log"
)

// Event is one line of operator-facing history.
type Event struct {
	Time    time.Time
	Message string
}

// New creates an event stamped with t.
func New(t time.Time, format string, args ...any) Event {
	return Event{Time: t, Message: fmt.Sprintf(format, args...)}
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(Event) error
}

// LogSink forwards events to a structured logger at info level.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Record(e Event) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info(e.Message, "time", e.Time.Format(time.RFC3339))
	return nil
}

type multi []Sink

// Multi returns a sink that records to every sink in order. Every sink is
// tried; their errors are joined.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Record(e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps events in memory.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Messages returns the recorded messages in order.
func (m *Memory) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]string, len(m.events))
	for i, e := range m.events {
		msgs[i] = e.Message
	}
	return msgs
}

// Reset drops all recorded events.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
