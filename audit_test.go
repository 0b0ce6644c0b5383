package goIdentity

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func withAuditSink(sink AuditSink) testOption {
	return func(b *Builder, _ *testEngine) {
		b.WithAuditSink(sink)
	}
}

func auditConfig(buffer int, dropIfFull bool) Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = buffer
	cfg.Audit.DropIfFull = dropIfFull
	return cfg
}

func drain(sink *ChannelSink) []AuditEvent {
	var out []AuditEvent
	for len(sink.Events()) > 0 {
		out = append(out, <-sink.Events())
	}
	return out
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	te := newTestEngine(t, testConfig(), withAuditSink(sink))

	_, _ = te.Issue(WithClientIP(context.Background(), "203.0.113.1"), Credentials{Identifier: "alice@example.com", Password: "wrong"})
	_ = te.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginEventsCarryFields(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, auditConfig(16, false), withAuditSink(sink))

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = te.Issue(ctx, Credentials{Identifier: "alice@example.com", Password: "super-secret-password"})
	te.login(t)
	_ = te.Close()

	events := drain(sink)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	failure := events[0]
	if failure.EventType != auditEventLoginFailure || failure.Success {
		t.Fatalf("unexpected failure event %+v", failure)
	}
	if failure.IP != "198.51.100.33" {
		t.Fatalf("expected IP 198.51.100.33, got %q", failure.IP)
	}
	if failure.UserID != "u1" || failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event %+v", failure)
	}
	if failure.Metadata["reason"] != "password_mismatch" {
		t.Fatalf("expected password_mismatch reason, got %v", failure.Metadata)
	}

	success := events[1]
	if success.EventType != auditEventLoginSuccess || !success.Success || success.Error != "" {
		t.Fatalf("unexpected success event %+v", success)
	}
}

func TestAuditLockoutSequence(t *testing.T) {
	sink := NewChannelSink(32)
	te := newTestEngine(t, auditConfig(32, false), withAuditSink(sink))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = te.Issue(ctx, Credentials{Identifier: "alice@example.com", Password: "wrong", IP: testIP})
	}
	_ = te.Close()

	var types []string
	for _, ev := range drain(sink) {
		types = append(types, ev.EventType)
	}
	want := []string{
		auditEventLoginFailure,
		auditEventLoginFailure,
		auditEventLoginFailure,
		auditEventLockoutApplied,
		auditEventLoginLocked,
	}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, types)
	}
}

func TestAuditDroppedEventsAreCounted(t *testing.T) {
	sink := newGateSink()
	te := newTestEngine(t, auditConfig(1, true), withAuditSink(sink))

	for i := 0; i < 5; i++ {
		_, _ = te.Issue(context.Background(), Credentials{Identifier: "nobody", Password: "x", IP: "10.0.0." + string(rune('1'+i))})
	}

	dropped := te.AuditDropped()
	if dropped == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}
	if got := te.Metrics().Value(MetricAuditDropped); got != dropped {
		t.Fatalf("expected metric %d to match dispatcher count %d", got, dropped)
	}

	close(sink.gate)
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := NewChannelSink(32)
	te := newTestEngine(t, auditConfig(32, false), withAuditSink(sink))
	ctx := context.Background()

	pair := te.login(t)
	next, err := te.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	_, _ = te.Refresh(ctx, pair.RefreshToken)
	if err := te.Logout(ctx, next.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, _ = te.Validate(ctx, next.AccessToken)
	_ = te.Close()

	events := drain(sink)
	if len(events) < 5 {
		t.Fatalf("expected at least 5 events, got %d", len(events))
	}

	needles := []string{testPassword, pair.AccessToken, pair.RefreshToken, next.AccessToken, next.RefreshToken}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field of %s", ev.EventType)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata of %s", ev.EventType)
				}
			}
		}
		if ev.Timestamp.IsZero() || time.Since(ev.Timestamp) > time.Minute {
			t.Fatalf("unexpected timestamp on %+v", ev)
		}
	}
}
