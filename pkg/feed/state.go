package feed

import (
	"time"

	"github.com/google/uuid"
)

// State is the dispensing state. Exactly one is active at any time.
type State int

const (
	StateIdle State = iota
	StateManualOpen
	StateDispensing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateManualOpen:
		return "MANUAL_OPEN"
	case StateDispensing:
		return "DISPENSING"
	default:
		return "UNKNOWN"
	}
}

// EventKind tells how a request finished.
type EventKind int

const (
	EventCompleted EventKind = iota + 1
	EventTimeout
	EventSession // a RUN/STOP period ended; it has no target
)

func (k EventKind) String() string {
	switch k {
	case EventCompleted:
		return "completed"
	case EventTimeout:
		return "timeout"
	case EventSession:
		return "session"
	default:
		return "unknown"
	}
}

// Event is emitted by Tick when a request leaves Dispensing, and by EndSession.
type Event struct {
	Kind        EventKind
	Request     Request
	DispensedKg float32
	Elapsed     time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	State       State
	Running     bool
	Manual      bool
	RequestID   uuid.UUID // zero when no request is live
	TargetKg    float32
	DispensedKg float32
	Elapsed     time.Duration
}

// Active reports whether a feed request is live.
func (s Status) Active() bool {
	return s.State == StateDispensing
}
