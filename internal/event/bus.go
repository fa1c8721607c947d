// Package event carries server notifications to external consumers such as
// the WebSocket presence layer and observability tooling.
package event

import "sync"

// Kind enumerates the notification types the voice server emits.
type Kind string

const (
	KindUserJoined  Kind = "user_joined"
	KindUserLeft    Kind = "user_left"
	KindUserMuted   Kind = "user_muted"
	KindAudioPacket Kind = "audio_packet"
	KindError       Kind = "error"
)

// Event is a single server notification. Fields are populated per Kind;
// unused fields stay at their zero value and are omitted from JSON.
type Event struct {
	Kind      Kind   `json:"kind"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Addr      string `json:"addr,omitempty"`
	Muted     bool   `json:"muted,omitempty"`
	Sequence  uint32 `json:"sequence,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// subscriberBufferSize is the per-subscriber channel capacity. A subscriber
// that falls further behind than this loses events rather than stalling the
// packet hot path.
const subscriberBufferSize = 256

// Bus fans events out to any number of subscribers. Publish never blocks.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new consumer. The returned cancel function removes
// the subscription; the channel is closed afterwards.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBufferSize)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber whose buffer has room.
// It returns the number of subscribers that dropped the event.
func (b *Bus) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
