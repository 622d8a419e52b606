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

package filesink

import (
	"os"
	"path"
	"strings"
	"testing"

	"github.com/swiftlog/corelog"
)

func TestWriteMessageAppends(t *testing.T) {
	logFile := path.Join(t.TempDir(), "corelogtest.log")
	s := New(logFile, corelog.LevelInfo)

	if err := s.WriteMessage(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelError, nil, "[ERROR]: foo bar"); err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}
	if err := s.WriteMessage(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelWarning, nil, "[WARNING]: second line"); err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("os.ReadFile(%q) failed: %v", logFile, err)
	}
	want := "[ERROR]: foo bar\n[WARNING]: second line\n"
	if string(content) != want {
		t.Fatalf("file content = %q, want %q", string(content), want)
	}
}

func TestWriteMessageOpenFailure(t *testing.T) {
	s := New(path.Join(t.TempDir(), "missing-dir", "corelogtest.log"), corelog.LevelInfo)
	err := s.WriteMessage(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelError, nil, "foo")
	if err == nil {
		t.Fatalf("WriteMessage() expected error, got nil")
	}
}

func TestApplyFiltersGatesOnLevel(t *testing.T) {
	s := New("unused.log", corelog.LevelWarning)

	if s.ApplyFilters(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelDebug, "") {
		t.Fatal("ApplyFilters() accepted a record below MinLevel")
	}
	if !s.ApplyFilters(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelError, "") {
		t.Fatal("ApplyFilters() rejected a record at or above MinLevel")
	}
}

func TestFlushAndRunPeriodicTasksAreNoops(t *testing.T) {
	s := New(path.Join(t.TempDir(), "corelogtest.log"), corelog.LevelInfo)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	s.RunPeriodicTasks()
}

func TestWriteMessageTrailingNewline(t *testing.T) {
	logFile := path.Join(t.TempDir(), "corelogtest.log")
	s := New(logFile, corelog.LevelInfo)

	if err := s.WriteMessage(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelInfo, nil, "hello"); err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("os.ReadFile(%q) failed: %v", logFile, err)
	}
	if !strings.HasSuffix(string(content), "\n") {
		t.Fatalf("file content %q missing trailing newline", string(content))
	}
}
