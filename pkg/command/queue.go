package command

import (
	"log"
)

// DefaultQueueSize is the default number of pending inbound events.
const DefaultQueueSize = 32

// Replier sends an outcome frame back to the transport a command came from.
type Replier interface {
	Reply(msg string) error
}

// EventKind identifies an inbound event.
type EventKind int

const (
	EventLine       EventKind = iota // a line of command text
	EventConnect                     // a remote peer attached
	EventDisconnect                  // the remote peer detached
)

// Event is something a transport observed. Transports run on their own
// goroutines (radio stack, serial reader) and only ever push events; the
// control loop is the single consumer and the single writer of device state.
type Event struct {
	Kind   EventKind
	Source string // transport name, for logs
	Line   string
	Reply  Replier // may be nil
}

// Queue hands events from transport goroutines to the control loop.
type Queue struct {
	events chan Event
}

// NewQueue creates a queue holding up to size pending events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{events: make(chan Event, size)}
}

// Push enqueues an event without blocking. When the queue is full the event
// is dropped and false is returned.
func (q *Queue) Push(ev Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		log.Printf("command: queue full, dropping %s event from %s", ev.Kind, ev.Source)
		return false
	}
}

// Drain hands every event pending at call time to fn, in arrival order.
// Events pushed while draining are left for the next call so one loop
// iteration is bounded.
func (q *Queue) Drain(fn func(Event)) int {
	n := len(q.events)
	for i := 0; i < n; i++ {
		fn(<-q.events)
	}
	return n
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.events)
}

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}
