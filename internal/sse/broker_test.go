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
	b := NewBroker()
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

func TestPublishRecipeEvent(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRecipeEvent(KindRecipeCopied, "42")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: recipe.copied\n") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `data: {"id":"42"}`) {
			t.Errorf("missing data in %q", s)
		}
		if !strings.HasSuffix(s, "\n\n") {
			t.Errorf("event not terminated in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestUnencodableEventSkipped(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "bad", Data: func() {}})
	b.PublishRecipeEvent(KindRecipeDeleted, "1")

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), KindRecipeDeleted) {
			t.Errorf("expected the encodable event first, got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.PublishRecipeEvent(KindRecipeUpserted, "7")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "event: recipe.upserted") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking the loop.
	for range clientBufferSize + 10 {
		b.PublishRecipeEvent(KindRecipeUpserted, "x")
	}
	if b.ClientCount() != 1 {
		t.Fatal("broker loop stalled")
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()
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

	// No-ops after close.
	b.PublishRecipeEvent(KindRecipeDeleted, "1")
	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
}
