package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	EventPresenceSync    = "presence_sync"
	EventMessageInserted = "message_inserted"
)

// Event is what travels on a document channel and out of the SSE stream.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: data}, nil
}

// DocumentTopic is the channel every member of a document listens on.
func DocumentTopic(documentID uint64) string {
	return fmt.Sprintf("document:%d", documentID)
}

type Broker interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
}

type Subscription struct {
	C     <-chan Event
	close func()
	once  sync.Once
}

// Close stops delivery and closes C. Safe to call more than once. C is also
// closed by the broker when the subscriber falls too far behind.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

const subscriberBuffer = 64

// MemoryBroker fans events out inside one process.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[chan Event]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, topic string, event Event) error {
	var slow []chan Event

	b.mu.RLock()
	for ch := range b.topics[topic] {
		select {
		case ch <- event:
		default:
			slow = append(slow, ch)
		}
	}
	b.mu.RUnlock()

	// a subscriber that fell behind is cut off so its client reconnects and
	// reloads instead of silently missing events
	for _, ch := range slow {
		b.drop(topic, ch)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, topic string) (*Subscription, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[chan Event]struct{})
	}
	b.topics[topic][ch] = struct{}{}
	b.mu.Unlock()

	return &Subscription{
		C:     ch,
		close: func() { b.drop(topic, ch) },
	}, nil
}

// drop unregisters ch and closes it, once.
func (b *MemoryBroker) drop(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	close(ch)
}
