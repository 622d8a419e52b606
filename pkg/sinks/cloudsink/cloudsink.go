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

// Package cloudsink implements a corelog.Sink delivering records to Google
// Cloud Logging, adapted from galog's CloudBackend.
package cloudsink

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"

	"github.com/swiftlog/corelog"
)

// InitMode controls whether New dials Cloud Logging immediately or defers
// the dial to the first WriteMessage call, mirroring CloudLoggingInitMode.
type InitMode int

const (
	// Lazy defers client construction until the first record is written.
	Lazy InitMode = iota
	// Active dials the client eagerly, at New time.
	Active
)

// Options configures a Sink's identity and Cloud Logging destination.
type Options struct {
	Ident          string
	ProgramName    string
	ProgramVersion string
	Project        string
	// ClientOptions are passed through to the underlying logging.NewClient
	// call, e.g. option.WithCredentialsFile for non-ambient credentials.
	ClientOptions []option.ClientOption
	InitMode      InitMode
}

// entryPayload is the structured payload attached to every Cloud Logging
// entry this sink emits, mirroring CloudEntryPayload.
type entryPayload struct {
	Message        string `json:"message"`
	LocalTimestamp string `json:"localTimestamp"`
	ProgramName    string `json:"programName,omitempty"`
	ProgramVersion string `json:"programVersion,omitempty"`
}

// Sink delivers rendered records to Google Cloud Logging.
type Sink struct {
	opts     Options
	MinLevel corelog.Level

	client *logging.Client
	logger *logging.Logger
}

// New constructs a Sink for opts. If opts.InitMode is Active, the Cloud
// Logging client is dialed immediately and any dial error is returned;
// under Lazy, dialing is deferred to the first WriteMessage call.
func New(ctx context.Context, opts Options, minLevel corelog.Level) (*Sink, error) {
	s := &Sink{opts: opts, MinLevel: minLevel}
	if opts.InitMode == Active {
		if err := s.initClient(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Sink) initClient(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	client, err := logging.NewClient(ctx, s.opts.Project, s.opts.ClientOptions...)
	if err != nil {
		return fmt.Errorf("cloudsink: dialing Cloud Logging: %w", err)
	}
	s.client = client
	s.logger = client.Logger(s.opts.Ident)
	return nil
}

// ApplyFilters accepts any record at or above MinLevel.
func (s *Sink) ApplyFilters(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, rendered string) bool {
	return level.GreaterOrEqual(s.MinLevel)
}

// WriteMessage dials the Cloud Logging client if not already connected
// (the Lazy path) and enqueues one structured entry at the severity
// matching level.
func (s *Sink) WriteMessage(meta corelog.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level corelog.Level, namedArgs []corelog.NamedArg, rendered string) error {
	if err := s.initClient(context.Background()); err != nil {
		return err
	}

	s.logger.Log(logging.Entry{
		Timestamp: time.Unix(0, tsNanos),
		Severity:  severityFor(level),
		Payload: entryPayload{
			Message:        rendered,
			LocalTimestamp: time.Unix(0, tsNanos).Format(time.RFC3339Nano),
			ProgramName:    s.opts.ProgramName,
			ProgramVersion: s.opts.ProgramVersion,
		},
	})
	return nil
}

// Flush pings the client to confirm connectivity, then flushes the
// logger's buffered entries, the same two-step CloudBackend.Flush used.
func (s *Sink) Flush() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Ping(context.Background()); err != nil {
		return fmt.Errorf("cloudsink: ping failed: %w", err)
	}
	if err := s.logger.Flush(); err != nil {
		return fmt.Errorf("cloudsink: flush failed: %w", err)
	}
	return nil
}

// RunPeriodicTasks is a no-op: the underlying logging.Logger manages its
// own upload cadence internally.
func (s *Sink) RunPeriodicTasks() {}

func severityFor(level corelog.Level) logging.Severity {
	switch {
	case level.GreaterOrEqual(corelog.LevelCritical):
		return logging.Critical
	case level.GreaterOrEqual(corelog.LevelError):
		return logging.Error
	case level.GreaterOrEqual(corelog.LevelWarning):
		return logging.Warning
	case level.GreaterOrEqual(corelog.LevelNotice):
		return logging.Notice
	case level.GreaterOrEqual(corelog.LevelInfo):
		return logging.Info
	default:
		return logging.Debug
	}
}
