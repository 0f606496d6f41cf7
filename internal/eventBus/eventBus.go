package eventBus

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventNodeJoined      EventType = "NODE_JOINED"
	EventNodeLeft        EventType = "NODE_LEFT"
	EventNeighborStored  EventType = "NEIGHBOR_STORED"
	EventNeighborExpired EventType = "NEIGHBOR_EXPIRED"
	EventPathLocked      EventType = "PATH_LOCKED"
	EventPathReleased    EventType = "PATH_RELEASED"
	EventPacketSent      EventType = "PACKET_SENT"
	EventPacketForwarded EventType = "PACKET_FORWARDED"
	EventPacketQueued    EventType = "PACKET_QUEUED"
	EventPacketDelivered EventType = "PACKET_DELIVERED"
	EventPacketExpired   EventType = "PACKET_EXPIRED"
	EventQueueOverflow   EventType = "QUEUE_OVERFLOW"
	EventQueueDrained    EventType = "QUEUE_DRAINED"
)

// Event holds details the monitor front end and the metrics collector need.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Type        EventType `json:"type"`
	NodeID      uint32    `json:"node_id"`
	OtherNodeID uint32    `json:"other_node_id,omitempty"`
	Sequence    uint32    `json:"sequence,omitempty"`
	TTL         uint8     `json:"ttl,omitempty"`
	RSSI        int       `json:"rssi,omitempty"`
	Count       int       `json:"count,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventBus manages a set of subscribers and publishes events to them.
type EventBus struct {
	subscribers []chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan Event, 0),
	}
}

// Publish sends an event to all subscribers. Sends are non-blocking in
// case a subscriber is busy.
func (eb *EventBus) Publish(e Event) {
	if eb == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, sub := range eb.subscribers {
		select {
		case sub <- e:
		default:
			log.Println("Dropping event: subscriber channel is full")
		}
	}
}

// Subscribe returns a new channel that will receive published events.
func (eb *EventBus) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, 100)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}
