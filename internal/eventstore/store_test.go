package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/profailabs/prof-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralDropsWrites(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	if err := es.AppendEvent(ctx, Event{SessionID: "s", Type: "text_response"}); err != nil {
		t.Fatalf("ephemeral append should be a no-op: %v", err)
	}
	events, err := es.ListSessionEvents(ctx, "s", 10)
	if err != nil || len(events) != 0 {
		t.Fatalf("ephemeral store should hold nothing, got %d events err %v", len(events), err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	sessionID := "session-123"
	if err := es.AppendSession(context.Background(), sessionID, "/ws/voice-tutor", "en-IN"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{SessionID: sessionID, Type: "teaching_content", Payload: []byte("hello")}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events, err := es.ListSessionEvents(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if string(events[0].Payload) != "hello" {
		t.Fatalf("unexpected payload: %s", events[0].Payload)
	}
	if events[0].Type != "teaching_content" {
		t.Fatalf("unexpected type: %s", events[0].Type)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "old-session", "/ws/voice-tutor", "en-IN"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{SessionID: "old-session", Type: "pong"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "new-session", "/ws/voice-tutor", "en-IN"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListSessionEvents(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
