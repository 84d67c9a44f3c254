package sse

import (
	"strings"
	"testing"
	"time"
)

func recvMsg(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func TestSubscribePublish(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	if got := b.ClientCount(); got != 1 {
		t.Fatalf("clients = %d, want 1", got)
	}

	b.Publish(Event{Type: "ping", Data: map[string]string{"k": "v"}})
	msg := recvMsg(t, ch)
	if !strings.HasPrefix(msg, "event: ping\n") || !strings.Contains(msg, `"k":"v"`) {
		t.Errorf("msg = %q", msg)
	}

	b.Unsubscribe(ch)
	if got := b.ClientCount(); got != 0 {
		t.Errorf("clients = %d after unsubscribe", got)
	}
}

func TestPublishNoteEvent(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	b.PublishNoteEvent("created", "a.md")

	msg := recvMsg(t, ch)
	if !strings.HasPrefix(msg, "event: note.created\n") || !strings.Contains(msg, `"path":"a.md"`) {
		t.Errorf("msg = %q", msg)
	}

	// The first note event also triggers a graph.updated.
	msg = recvMsg(t, ch)
	if !strings.HasPrefix(msg, "event: graph.updated\n") {
		t.Errorf("msg = %q", msg)
	}

	// Within the throttle window no second graph.updated is sent.
	b.PublishNoteEvent("updated", "a.md")
	msg = recvMsg(t, ch)
	if !strings.HasPrefix(msg, "event: note.updated\n") {
		t.Errorf("msg = %q", msg)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected event within throttle window: %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishRename(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	b.PublishRename("old.md", "new.md")

	msg := recvMsg(t, ch)
	if !strings.HasPrefix(msg, "event: note.renamed\n") {
		t.Fatalf("msg = %q", msg)
	}
	if !strings.Contains(msg, `"path":"new.md"`) || !strings.Contains(msg, `"old_path":"old.md"`) {
		t.Errorf("msg = %q", msg)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(time.Hour)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed on broker shutdown")
	}

	// Operations after close are safe no-ops.
	b.Publish(Event{Type: "ping"})
	b.PublishNoteEvent("created", "x.md")
	if got := b.ClientCount(); got != 0 {
		t.Errorf("clients = %d after close", got)
	}
	ch2 := b.Subscribe()
	if _, ok := <-ch2; ok {
		t.Error("subscribe after close should return a closed channel")
	}
	b.Close() // idempotent
}
