//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

//go:build windows

// Package eventlogsink implements a corelog.Sink delivering records to the
// Windows Event Log, adapted from galog's EventlogBackend.
package eventlogsink

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows/svc/eventlog"

	"github.com/swiftlog/corelog"
)

// metrics mirrors galog_eventlog_windows.go's eventlogMetrics.
type metrics struct {
	success atomic.Int64
	errors  atomic.Int64
}

// Stats is a point-in-time snapshot of a Sink's delivery metrics.
type Stats struct {
	Success int64
	Errors  int64
}

// Sink delivers rendered records to the Windows Event Log.
type Sink struct {
	// Ident names the event source to install and open.
	Ident string
	// EventID is stamped on every event this sink writes.
	EventID  uint32
	MinLevel corelog.Level

	registerOnce sync.Once
	registerErr  error
	log          *eventlog.Log
	metrics      metrics
}

// New returns a Sink writing under the given event source identity.
func New(ident string, eventID uint32, minLevel corelog.Level) *Sink {
	return &Sink{Ident: ident, EventID: eventID, MinLevel: minLevel}
}

func (s *Sink) ensureOpen() error {
	s.registerOnce.Do(func() {
		// InstallAsEventCreate is idempotent and safe to attempt even if the
		// source already exists; ignore the "already exists" case the way
		// EventlogBackend did.
		_ = eventlog.InstallAsEventCreate(s.Ident, eventlog.Info|eventlog.Warning|eventlog.Error)
		s.log, s.registerErr = eventlog.Open(s.Ident)
	})
	return s.registerErr
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage writes rendered to the Windows Event Log at the method
// matching level (Info/Warning/Error).
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	if err := s.ensureOpen(); err != nil {
		s.metrics.errors.Add(1)
		return fmt.Errorf("eventlogsink: opening event source %q: %w", s.Ident, err)
	}

	op := eventlogOpFor(s.log, level)
	if err := op(s.EventID, rendered); err != nil {
		s.metrics.errors.Add(1)
		return fmt.Errorf("eventlogsink: writing event: %w", err)
	}
	s.metrics.success.Add(1)
	return nil
}

// Flush is a no-op: eventlog.Log writes synchronously.
func (s *Sink) Flush() error {
	return nil
}

// RunPeriodicTasks is a no-op: this sink holds no background state beyond
// its counters.
func (s *Sink) RunPeriodicTasks() {}

// Stats returns a snapshot of this sink's delivery metrics.
func (s *Sink) Stats() Stats {
	return Stats{Success: s.metrics.success.Load(), Errors: s.metrics.errors.Load()}
}

func eventlogOpFor(l *eventlog.Log, level corelog.Level) func(uint32, string) error {
	switch {
	case level.GreaterOrEqual(corelog.LevelError):
		return l.Error
	case level.GreaterOrEqual(corelog.LevelWarning):
		return l.Warning
	default:
		return l.Info
	}
}
