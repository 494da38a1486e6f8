package events

import (
	"context"
	"log"
	"time"

	"github.com/rankforge/rankforge/internal/store"
)

// Publisher appends an event to the durable log and fans it out to live
// subscribers. The log write assigns the sequence number SSE clients use to
// resume after a dropped connection.
type Publisher struct {
	store  store.Store
	broker *Broker
	source string
}

func NewPublisher(st store.Store, broker *Broker, source string) *Publisher {
	return &Publisher{store: st, broker: broker, source: source}
}

func (p *Publisher) Broker() *Broker {
	return p.broker
}

// FromRecord converts a persisted event row into its wire form. The SSE
// replay path and the live fan-out path go through here so both emit the
// same shape with a normalized type.
func FromRecord(record store.SessionEvent) SessionEvent {
	return SessionEvent{
		SessionID: record.SessionID,
		Seq:       record.Seq,
		Type:      NormalizeType(record.Type),
		Ts:        record.Timestamp,
		Source:    record.Source,
		TraceID:   record.TraceID,
		Payload:   record.Payload,
	}
}

// Emit records and broadcasts one event. Failures are logged, not returned:
// the event stream is a progress surface, never a gate on the pipeline.
func (p *Publisher) Emit(ctx context.Context, sessionID string, eventType string, payload map[string]any) {
	seq, err := p.store.NextSeq(ctx, sessionID)
	if err != nil {
		log.Printf("events: next seq for session %s: %v", sessionID, err)
		return
	}

	record := store.SessionEvent{
		SessionID: sessionID,
		Seq:       seq,
		Type:      NormalizeType(eventType),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    p.source,
		Payload:   payload,
	}
	if err := p.store.AppendEvent(ctx, record); err != nil {
		log.Printf("events: append event for session %s: %v", sessionID, err)
		return
	}

	p.broker.Publish(FromRecord(record))
}
