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

//go:build !linux

// Package syslogsink implements a corelog.Sink delivering records to the
// local syslog daemon. log/syslog is POSIX-only, so on other platforms New
// returns a Sink whose WriteMessage always fails, mirroring galog's
// per-platform syslog backend split.
package syslogsink

import (
	"errors"

	"github.com/swiftlog/corelog"
)

// Stats is a point-in-time snapshot of a Sink's delivery metrics.
type Stats struct {
	Success   int64
	Errors    int64
	ErrorMsgs []string
}

// Sink is a non-functional stand-in on platforms without log/syslog.
type Sink struct {
	Ident    string
	MinLevel corelog.Level
}

// New returns a Sink that cannot actually deliver to syslog on this
// platform.
func New(ident string, minLevel corelog.Level) *Sink {
	return &Sink{Ident: ident, MinLevel: minLevel}
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage always fails: syslog is unavailable on this platform.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	return errors.New("syslogsink: unsupported on this platform")
}

// Flush is a no-op.
func (s *Sink) Flush() error { return nil }

// RunPeriodicTasks is a no-op.
func (s *Sink) RunPeriodicTasks() {}

// Stats returns an empty snapshot.
func (s *Sink) Stats() Stats { return Stats{} }
