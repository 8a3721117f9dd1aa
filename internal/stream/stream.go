package stream

import (
	"context"
	"sync"
	"time"

	"recircuit.org/internal/waste"
)

// Event is the wire form of a committed disposition change pushed to SSE
// subscribers.
type Event struct {
	ItemID    string    `json:"item_id"`
	Operation string    `json:"operation"`
	From      string    `json:"from"`
	To        string    `json:"to"` // "Sold" when the item left through purchase
	Timestamp time.Time `json:"timestamp"`
}

// Stream fans disposition events out to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

var _ waste.Publisher = (*Stream)(nil)

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish delivers the committed workflow event to every subscriber.
func (s *Stream) Publish(evt waste.Event) {
	out := Event{
		ItemID:    evt.ItemID,
		Operation: string(evt.Operation),
		From:      string(evt.From),
		To:        string(evt.To),
		Timestamp: time.Now().UTC(),
	}
	if out.To == "" {
		out.To = "Sold"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- out:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
