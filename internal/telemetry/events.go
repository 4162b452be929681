package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event names emitted by the pipeline and the service.
const (
	EventAnalysisCompleted    = "analysis_completed"
	EventDecisionMade         = "decision_made"
	EventVisualizationDecided = "visualization_decided"
	EventModerationCompleted  = "moderation_completed"
	EventModerationFailed     = "moderation_failed"
)

// Event is a named decision point with its attributes.
type Event struct {
	Name       string
	Attributes []attribute.KeyValue
}

// Publisher receives pipeline events. Implementations must be safe for
// concurrent use and must not fail the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// SpanPublisher records each event on the span in ctx and logs it.
type SpanPublisher struct {
	logger *slog.Logger
}

// NewSpanPublisher creates a SpanPublisher. A nil logger uses slog.Default().
func NewSpanPublisher(logger *slog.Logger) *SpanPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpanPublisher{logger: logger}
}

func (p *SpanPublisher) Publish(ctx context.Context, event Event) {
	trace.SpanFromContext(ctx).AddEvent(event.Name, trace.WithAttributes(event.Attributes...))

	attrs := make([]slog.Attr, 0, len(event.Attributes)+1)
	attrs = append(attrs, slog.String("event", event.Name))
	for _, kv := range event.Attributes {
		attrs = append(attrs, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	p.logger.LogAttrs(ctx, slog.LevelInfo, "moderation event", attrs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of what has been published.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the names of the published events in order.
func (r *Recorder) Names() []string {
	events := r.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

// Attr returns the value of key on the first event named name.
func (r *Recorder) Attr(name string, key attribute.Key) (attribute.Value, bool) {
	for _, e := range r.Events() {
		if e.Name != name {
			continue
		}
		for _, kv := range e.Attributes {
			if kv.Key == key {
				return kv.Value, true
			}
		}
	}
	return attribute.Value{}, false
}

// Multi fans events out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}
