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

// Package filesink implements a corelog.Sink that appends rendered records
// to a file, adapted from galog's FileBackend: the queueing and retry that
// backend used to provide for itself now lives entirely in the backend
// worker, so this sink only needs to open, append, and close.
package filesink

import (
	"fmt"
	"os"

	"github.com/swiftlog/corelog"
)

// Sink logs to a file, opening it for append on every WriteMessage, the
// same "not an expensive operation, so don't hold the descriptor open"
// tradeoff FileBackend made.
type Sink struct {
	// Path is the log file's path.
	Path string
	// MinLevel gates which records this sink accepts; records below
	// MinLevel are filtered out by ApplyFilters.
	MinLevel corelog.Level
}

// New returns a Sink appending to the file at path.
func New(path string, minLevel corelog.Level) *Sink {
	return &Sink{Path: path, MinLevel: minLevel}
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage appends rendered, plus a trailing newline, to the file.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("filesink: opening %s: %w", s.Path, err)
	}
	defer f.Close()

	line := rendered + "\n"
	n, err := f.WriteString(line)
	if err != nil {
		return fmt.Errorf("filesink: writing to %s: %w", s.Path, err)
	}
	if n != len(line) {
		return fmt.Errorf("filesink: short write to %s: wrote %d of %d bytes", s.Path, n, len(line))
	}
	return nil
}

// Flush is a no-op: the file is opened and closed on every WriteMessage.
func (s *Sink) Flush() error {
	return nil
}

// RunPeriodicTasks is a no-op: this sink holds no background state.
func (s *Sink) RunPeriodicTasks() {}
