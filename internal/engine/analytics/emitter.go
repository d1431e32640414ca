package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is a product-analytics counter increment, e.g. "webhook.created".
type Event struct {
	Name           string
	OrganizationID string
	At             time.Time
}

type Sink interface {
	Write(ctx context.Context, event Event) error
}

// BufferMetrics observes the emitter's queue.
type BufferMetrics interface {
	BufferSizeUpdate(size int)
	EmitDropped()
}

// Emitter queues analytics events for a background writer. Emit never
// blocks the caller: when the buffer is full the event is dropped.
type Emitter struct {
	ch      chan Event
	sink    Sink
	metrics BufferMetrics
	now     func() time.Time
}

func NewEmitter(sink Sink, buffer int, metrics BufferMetrics) *Emitter {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Emitter{
		ch:      make(chan Event, buffer),
		sink:    sink,
		metrics: metrics,
		now:     time.Now,
	}
}

// Emit enqueues an event and reports whether it was accepted.
func (e *Emitter) Emit(name, orgID string) bool {
	event := Event{Name: name, OrganizationID: orgID, At: e.now()}
	select {
	case e.ch <- event:
		if e.metrics != nil {
			e.metrics.BufferSizeUpdate(len(e.ch))
		}
		return true
	default:
		if e.metrics != nil {
			e.metrics.EmitDropped()
		}
		log.Warn().Str("event", name).Str("org_id", orgID).Msg("analytics buffer full, event dropped")
		return false
	}
}

// Run writes queued events to the sink until ctx is cancelled, then
// flushes what is already buffered.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case event := <-e.ch:
			e.write(ctx, event)
		case <-ctx.Done():
			e.flush()
			return nil
		}
	}
}

func (e *Emitter) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-e.ch:
			e.write(ctx, event)
		default:
			return
		}
	}
}

func (e *Emitter) write(ctx context.Context, event Event) {
	if e.metrics != nil {
		e.metrics.BufferSizeUpdate(len(e.ch))
	}
	if err := e.sink.Write(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", event.Name).Msg("analytics write failed")
	}
}

// LogSink is used when no analytics store is configured.
type LogSink struct{}

func (LogSink) Write(_ context.Context, event Event) error {
	log.Debug().Str("event", event.Name).Str("org_id", event.OrganizationID).Msg("analytics event")
	return nil
}
