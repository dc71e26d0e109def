// Package events fans product and reset notifications out to every open
// event stream.
package events

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const DefaultBuffer = 16

// Broadcaster keeps the set of live subscriptions. Each subscription has a
// buffered channel; a subscriber that falls behind loses events instead of
// stalling the writer.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	closed bool
}

type Subscription struct {
	ID string

	frames chan []byte
	owner  *Broadcaster
	once   sync.Once
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a new subscription. After Close the returned
// subscription is already finished.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		frames: make(chan []byte, b.buffer),
		owner:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.frames) })
		return sub
	}
	b.subs[sub.ID] = sub
	log.Printf("[events] subscriber %s connected (%d open)", sub.ID, len(b.subs))
	return sub
}

// Notify encodes the event once and offers it to every subscription
// registered at this moment.
func (b *Broadcaster) Notify(eventType string, payload any) {
	frame, err := encode(eventType, payload)
	if err != nil {
		log.Printf("[events] %v", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		select {
		case sub.frames <- frame:
		default:
			log.Printf("[events] subscriber %s is full, dropped %s", id, eventType)
		}
	}
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Notify calls reach nobody.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.once.Do(func() { close(sub.frames) })
		delete(b.subs, id)
	}
	log.Printf("[events] broadcaster closed")
}

// Frames yields encoded events. The channel is closed when the
// subscription or the broadcaster is closed.
func (s *Subscription) Frames() <-chan []byte {
	return s.frames
}

func (s *Subscription) Close() {
	b := s.owner
	b.mu.Lock()
	defer b.mu.Unlock()
	s.once.Do(func() {
		delete(b.subs, s.ID)
		close(s.frames)
		log.Printf("[events] subscriber %s disconnected (%d open)", s.ID, len(b.subs))
	})
}
