package events

import (
	"context"
	"strings"
	"sync"
)

// SessionEvent is the wire form of a transcript or progress event fanned out
// to SSE subscribers of one session.
type SessionEvent struct {
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	Type      string         `json:"type"`
	Ts        string         `json:"ts"`
	Source    string         `json:"source"`
	TraceID   string         `json:"trace_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan SessionEvent]struct{}
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan SessionEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, sessionID string) <-chan SessionEvent {
	ch := make(chan SessionEvent, 16)

	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = map[chan SessionEvent]struct{}{}
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[sessionID] != nil {
			delete(b.subscribers[sessionID], ch)
			if len(b.subscribers[sessionID]) == 0 {
				delete(b.subscribers, sessionID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers the event to every subscriber of the session. Slow
// subscribers are skipped rather than blocking the publisher.
func (b *Broker) Publish(event SessionEvent) {
	b.mu.RLock()
	subscribers := b.subscribers[event.SessionID]
	chans := make([]chan SessionEvent, 0, len(subscribers))
	for ch := range subscribers {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}
