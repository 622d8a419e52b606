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

// Package serialsink implements a corelog.Sink writing to a serial port,
// adapted from galog's SerialBackend.
package serialsink

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/swiftlog/corelog"
)

// DefaultBaud is used when Options.Baud is left at zero.
const DefaultBaud = 115200

// Options configures which port a Sink writes to and at what baud rate.
type Options struct {
	Port string
	Baud int
}

// Sink writes rendered records to a serial port, opening the port for each
// write the same way SerialBackend did — serial ports are typically
// low-traffic debug consoles, so the cost of reopening per message is
// acceptable in exchange for not holding a port open indefinitely.
type Sink struct {
	opts     Options
	MinLevel corelog.Level
}

// New returns a Sink writing to opts.Port. A zero Options.Baud is replaced
// with DefaultBaud.
func New(opts Options, minLevel corelog.Level) *Sink {
	if opts.Baud == 0 {
		opts.Baud = DefaultBaud
	}
	return &Sink{opts: opts, MinLevel: minLevel}
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage opens the configured serial port and writes rendered plus a
// trailing newline.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	port, err := serial.Open(s.opts.Port, &serial.Mode{BaudRate: s.opts.Baud})
	if err != nil {
		return fmt.Errorf("serialsink: opening %s: %w", s.opts.Port, err)
	}
	defer port.Close()

	if _, err := port.Write([]byte(rendered + "\n")); err != nil {
		return fmt.Errorf("serialsink: writing to %s: %w", s.opts.Port, err)
	}
	return nil
}

// Flush is a no-op: the port is opened and closed on every WriteMessage.
func (s *Sink) Flush() error {
	return nil
}

// RunPeriodicTasks is a no-op: this sink holds no background state.
func (s *Sink) RunPeriodicTasks() {}
