package analytics

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newMemorySink() *memorySink {
	return &memorySink{got: make(chan struct{}, 100)}
}

func (s *memorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type countingMetrics struct {
	mu      sync.Mutex
	dropped int
}

func (m *countingMetrics) BufferSizeUpdate(int) {}
func (m *countingMetrics) EmitDropped() {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

func TestEmitter_DeliversToSink(t *testing.T) {
	sink := newMemorySink()
	e := NewEmitter(sink, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	if !e.Emit("webhook.created", "org_1") {
		t.Fatal("Emit() = false, want true")
	}

	select {
	case <-sink.got:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sink write")
	}
	cancel()
	<-done

	if sink.len() != 1 {
		t.Fatalf("sink received %d events, want 1", sink.len())
	}
	if sink.events[0].Name != "webhook.created" || sink.events[0].OrganizationID != "org_1" {
		t.Errorf("unexpected event: %+v", sink.events[0])
	}
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	metrics := &countingMetrics{}
	e := NewEmitter(newMemorySink(), 1, metrics)

	if !e.Emit("a.b", "org_1") {
		t.Fatal("first Emit should be accepted")
	}
	if e.Emit("a.b", "org_1") {
		t.Fatal("second Emit should be dropped")
	}
	if metrics.dropped != 1 {
		t.Errorf("dropped = %d, want 1", metrics.dropped)
	}
}

func TestEmitter_FlushesOnShutdown(t *testing.T) {
	sink := newMemorySink()
	e := NewEmitter(sink, 10, nil)
	e.Emit("a.b", "org_1")
	e.Emit("a.c", "org_1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)

	if sink.len() != 2 {
		t.Errorf("flushed %d events, want 2", sink.len())
	}
}

func TestBuildKey(t *testing.T) {
	event := Event{Name: "event.published", OrganizationID: "org_9", At: time.Date(2026, 1, 5, 23, 0, 0, 0, time.FixedZone("x", -3*3600))}
	want := "ws:analytics:org_9:event.published:20260106"
	if got := buildKey(event); got != want {
		t.Errorf("buildKey() = %q, want %q", got, want)
	}
}
