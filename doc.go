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

// Package corelog implements the backend half of an asynchronous,
// low-latency logging system. Producer goroutines encode log records onto
// a per-producer single-producer/single-consumer byte queue; a single
// background worker goroutine drains those queues, orders the decoded
// records by timestamp, formats them, and dispatches them to [Sink]
// implementations.
//
// # Runtime
//
// Unlike a process-wide singleton logger, every component here is owned by
// a [Runtime] value, so a process can run more than one independent
// logging pipeline (handy for tests):
//
//	rt := corelog.NewRuntime()
//	rt.RegisterSink("main", mySink)
//	logger := rt.NewLogger("app", corelog.WithFormatPattern("%(time) [%(level)] %(message)"))
//	rt.Start(corelog.Options{})
//	...
//	rt.Stop()
//
// # Producers and sinks
//
// Encoding log records onto the queue and concrete sink implementations
// (file, syslog, cloud logging, ...) are deliberately kept outside of the
// hard part of this package; see [Sink] and the pkg/wire and pkg/sinks
// sub-packages.
//
// # Backtrace logging
//
// A [Logger] may be configured with a backtrace flush level: records logged
// at [LevelBacktrace] are held in a bounded ring instead of being dispatched
// immediately, and are only emitted once a record at or above the flush
// level is logged (or a backtrace flush is explicitly requested). Records at
// every other level are dispatched directly.
package corelog
