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

//go:build !windows

// Package eventlogsink implements a corelog.Sink delivering records to the
// Windows Event Log. On other platforms New returns a Sink whose
// WriteMessage always fails, mirroring galog's per-platform eventlog split.
package eventlogsink

import (
	"errors"

	"github.com/swiftlog/corelog"
)

// Stats is a point-in-time snapshot of a Sink's delivery metrics.
type Stats struct {
	Success int64
	Errors  int64
}

// Sink is a non-functional stand-in on platforms without the Windows Event
// Log.
type Sink struct {
	Ident    string
	EventID  uint32
	MinLevel corelog.Level
}

// New returns a Sink that cannot actually deliver to the Windows Event Log
// on this platform.
func New(ident string, eventID uint32, minLevel corelog.Level) *Sink {
	return &Sink{Ident: ident, EventID: eventID, MinLevel: minLevel}
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage always fails: the Windows Event Log is unavailable on this
// platform.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	return errors.New("eventlogsink: unsupported on this platform")
}

// Flush is a no-op.
func (s *Sink) Flush() error { return nil }

// RunPeriodicTasks is a no-op.
func (s *Sink) RunPeriodicTasks() {}

// Stats returns an empty snapshot.
func (s *Sink) Stats() Stats { return Stats{} }
