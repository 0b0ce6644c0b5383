// Package audit implements async event dispatching for security-relevant
// engine outcomes.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, logrus, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: timestamp, type, subject user, acting user, client IP, outcome and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does. Durable administrative audit records are written
// synchronously through permission.AuditSink, not through this package.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goIdentity or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
