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

// Package stderrsink implements a corelog.Sink writing to an arbitrary
// io.Writer, adapted from galog's StderrBackend.
package stderrsink

import (
	"fmt"
	"io"
	"os"

	"github.com/swiftlog/corelog"
)

// Sink writes rendered records to writer, one per line.
type Sink struct {
	writer   io.Writer
	MinLevel corelog.Level
}

// New returns a Sink writing to writer. Passing nil defaults to os.Stderr.
func New(writer io.Writer, minLevel corelog.Level) *Sink {
	if writer == nil {
		writer = os.Stderr
	}
	return &Sink{writer: writer, MinLevel: minLevel}
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage writes rendered, plus a trailing newline, to the writer.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	if _, err := fmt.Fprintln(s.writer, rendered); err != nil {
		return fmt.Errorf("stderrsink: write failed: %w", err)
	}
	return nil
}

// Flush syncs the underlying file if the writer is one, matching
// StderrBackend's os.Stderr.Sync behavior; for any other io.Writer it is a
// no-op.
func (s *Sink) Flush() error {
	if f, ok := s.writer.(*os.File); ok {
		// Sync on a pipe or console can return an error Go doesn't consider
		// actionable; ignore it, same as StderrBackend did.
		_ = f.Sync()
	}
	return nil
}

// RunPeriodicTasks is a no-op: this sink holds no background state.
func (s *Sink) RunPeriodicTasks() {}
