package goIdentity

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/goIdentity/internal/audit"
)

// AuditEvent is one auth outcome delivered to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives auth events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel; see Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LogSink writes events as structured logrus entries.
type LogSink = audit.LogSink

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(log logrus.FieldLogger) *LogSink {
	return audit.NewLogSink(log)
}
