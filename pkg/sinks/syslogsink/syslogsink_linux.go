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

//go:build linux

// Package syslogsink implements a corelog.Sink delivering records to the
// local syslog daemon, adapted from galog's SyslogBackend.
package syslogsink

import (
	"fmt"
	"log/syslog"
	"sync"

	"github.com/swiftlog/corelog"
)

// metrics mirrors galog_syslog_linux.go's syslogMetrics: a small mutex
// guarded counter set a caller can inspect for observability, since this
// sink has no other way to surface delivery failures besides the backend's
// ErrorNotifier.
type metrics struct {
	mu        sync.Mutex
	success   int64
	errors    int64
	errorMsgs []string
}

func (m *metrics) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success++
}

func (m *metrics) recordError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
	m.errorMsgs = append(m.errorMsgs, msg)
}

// Stats is a point-in-time snapshot of a Sink's delivery metrics.
type Stats struct {
	Success   int64
	Errors    int64
	ErrorMsgs []string
}

// Sink delivers rendered records to the local syslog daemon, opening a new
// connection per message the same way SyslogBackend did.
type Sink struct {
	// Ident is the syslog program identity tag.
	Ident    string
	MinLevel corelog.Level

	metrics metrics
}

// New returns a Sink identifying itself to syslog as ident.
func New(ident string, minLevel corelog.Level) *Sink {
	return &Sink{Ident: ident, MinLevel: minLevel}
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage opens a syslog connection, dispatches rendered at the
// priority matching level, and records the outcome in s's metrics.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, s.Ident)
	if err != nil {
		s.metrics.recordError(err.Error())
		return fmt.Errorf("syslogsink: dialing syslog: %w", err)
	}
	defer w.Close()

	op := syslogOpFor(w, level)
	if err := op(rendered); err != nil {
		s.metrics.recordError(err.Error())
		return fmt.Errorf("syslogsink: writing record: %w", err)
	}
	s.metrics.recordSuccess()
	return nil
}

// Flush is a no-op: syslog connections are opened and closed per message.
func (s *Sink) Flush() error {
	return nil
}

// RunPeriodicTasks is a no-op: this sink holds no background state beyond
// its counters.
func (s *Sink) RunPeriodicTasks() {}

// Stats returns a snapshot of this sink's delivery metrics.
func (s *Sink) Stats() Stats {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	return Stats{
		Success:   s.metrics.success,
		Errors:    s.metrics.errors,
		ErrorMsgs: append([]string(nil), s.metrics.errorMsgs...),
	}
}

func syslogOpFor(w *syslog.Writer, level corelog.Level) func(string) error {
	switch {
	case level.GreaterOrEqual(corelog.LevelCritical):
		return w.Crit
	case level.GreaterOrEqual(corelog.LevelError):
		return w.Err
	case level.GreaterOrEqual(corelog.LevelWarning):
		return w.Warning
	case level.GreaterOrEqual(corelog.LevelInfo):
		return w.Info
	default:
		return w.Debug
	}
}
