package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishCommitDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishCommit("alice/notes", "commit-1")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: commit.applied") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"repo":"alice/notes"`) || !strings.Contains(s, `"sha":"commit-1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestEntriesUpdatedCoalescing(t *testing.T) {
	b := NewBroker(300 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// A burst collapses into the leading event plus one trailing event
	// carrying the latest count.
	b.PublishEntriesUpdated(1)
	b.PublishEntriesUpdated(2)
	b.PublishEntriesUpdated(3)

	var got []string
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-deadline:
			t.Fatalf("received %d entries events, want 2: %v", len(got), got)
		}
	}

	if !strings.Contains(got[0], `"count":1`) {
		t.Errorf("leading event = %q, want count 1", got[0])
	}
	if !strings.Contains(got[1], `"count":3`) {
		t.Errorf("trailing event = %q, want latest count 3", got[1])
	}

	// No third event arrives.
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra event %q", msg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give the handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishCommit("alice/notes", "commit-9")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: commit.applied") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Exceed the per-client buffer; the broker must not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(Event{Type: "test", Data: nil})
	b.PublishEntriesUpdated(1)
	b.PublishCommit("alice/notes", "x")
}
