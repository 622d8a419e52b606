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

package stderrsink

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/swiftlog/corelog"
)

const (
	writeFailure int = iota
	writeLenFailure
)

type errorWriter struct {
	failureType int
}

func (ew errorWriter) Write(data []byte) (int, error) {
	switch ew.failureType {
	case writeFailure:
		return 0, fmt.Errorf("injected write error")
	case writeLenFailure:
		return 0, nil
	}
	return len(data), nil
}

func TestWriteMessageFailure(t *testing.T) {
	s := New(&errorWriter{failureType: writeFailure}, corelog.LevelInfo)
	err := s.WriteMessage(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelError, nil, "foobar")
	if err == nil {
		t.Fatalf("WriteMessage() expected error, got nil")
	}
}

func TestWriteMessageSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, corelog.LevelInfo)

	if err := s.WriteMessage(corelog.RecordMetadata{}, 0, "", "", "", corelog.LevelError, nil, "foobar"); err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "foobar") {
		t.Fatalf("buffer = %q, want it to contain %q", buf.String(), "foobar")
	}
}

func TestNewDefaultsToStderr(t *testing.T) {
	s := New(nil, corelog.LevelInfo)
	if s.writer != os.Stderr {
		t.Fatalf("New(nil, ...) writer = %v, want os.Stderr", s.writer)
	}
}
