package authcore_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/taskgrid/authcore"
)

type recordingSink struct {
	mu     sync.Mutex
	events []authcore.AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event authcore.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []authcore.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]authcore.AuditEvent(nil), s.events...)
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := &recordingSink{}
	h := newTestEngineWithSink(t, sink)
	h.register(t, "audrey@example.com")
	h.login(t, "audrey@example.com")
	h.engine.Close()

	types := map[string]int{}
	for _, event := range sink.snapshot() {
		types[event.EventType]++
		if event.Timestamp.IsZero() {
			t.Fatal("event without a timestamp")
		}
		for k, v := range event.Metadata {
			if k == "password" || strings.Contains(v, "$argon2id$") {
				t.Fatalf("secret material leaked into audit metadata: %s=%s", k, v)
			}
		}
	}

	if types["user.registered"] != 1 {
		t.Fatalf("expected one registration event, got %d", types["user.registered"])
	}
	if types["user.logged_in"] != 1 {
		t.Fatalf("expected one login event, got %d", types["user.logged_in"])
	}
}
