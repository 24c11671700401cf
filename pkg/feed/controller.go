package feed

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
)

var (
	// ErrInvalidAmount is returned when a feed target is outside (0, max feed].
	ErrInvalidAmount = errors.New("invalid feed amount")
	// ErrFeedInProgress is returned when a feed is requested while another one is dispensing.
	ErrFeedInProgress = errors.New("feed already in progress")
)

// Valve is the actuator position seen by the controller.
type Valve interface {
	Open()
	Close()
}

// Config contains the dispensing safety bounds.
type Config struct {
	MaxFeedKg   float32
	MaxDuration time.Duration
}

// Request is an accepted FEED_NOW.
type Request struct {
	ID            uuid.UUID
	TargetKg      float32
	StartWeightKg float32   // filtered weight when the request was accepted
	StartTime     time.Time // monotonic
}

// Controller owns the dispensing state machine. Every operation holds the
// controller lock for its full duration, so a command applied from another
// goroutine can never interleave with a Tick.
type Controller struct {
	cfg   Config
	valve Valve

	mu          sync.Mutex
	state       State
	req         *Request // non-nil iff state == StateDispensing
	running     bool     // RUN/START flag
	dispensedKg float32  // progress seen by the last Tick
	lastTick    time.Time
}

// New creates a controller in Idle with the valve closed.
func New(cfg Config, valve Valve) *Controller {
	c := &Controller{
		cfg:   cfg,
		valve: valve,
		state: StateIdle,
	}
	valve.Close()
	return c
}

// RequestFeed starts dispensing targetKg on top of currentKg. Targets outside
// (0, MaxFeedKg] are rejected with ErrInvalidAmount and leave the state untouched.
// A manual override is canceled by an accepted request.
func (c *Controller) RequestFeed(targetKg float32, now time.Time, currentKg float32) (Request, error) {
	if math32.IsNaN(targetKg) || !(targetKg > 0 && targetKg <= c.cfg.MaxFeedKg) {
		return Request{}, fmt.Errorf("%w: %.3f kg not in (0, %.3f]", ErrInvalidAmount, targetKg, c.cfg.MaxFeedKg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDispensing {
		return Request{}, fmt.Errorf("%w: %.3f kg of %.3f kg", ErrFeedInProgress, c.dispensedKg, c.req.TargetKg)
	}

	req := Request{
		ID:            newRequestID(now),
		TargetKg:      targetKg,
		StartWeightKg: currentKg,
		StartTime:     now,
	}
	c.req = &req
	c.state = StateDispensing
	c.dispensedKg = 0
	c.lastTick = now
	c.valve.Open()

	return req, nil
}

// ManualOpen cancels any dispensing request and opens the valve.
func (c *Controller) ManualOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked("manual open")
	c.state = StateManualOpen
	c.valve.Open()
}

// ManualClose cancels any dispensing request, clears the running flag and closes the valve.
func (c *Controller) ManualClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked("manual close")
	c.state = StateIdle
	c.running = false
	c.valve.Close()
}

// SetRunning sets the continuous-motion flag. Clearing it closes the valve
// unless the state machine is holding it open.
func (c *Controller) SetRunning(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = running
	switch {
	case running:
		c.valve.Open()
	case c.state == StateIdle:
		c.valve.Close()
	}
}

// Tick evaluates the active request against the filtered weight. The safety
// timeout is checked before completion, so it wins when both would fire.
// It returns an event when the request finished on this tick.
func (c *Controller) Tick(now time.Time, currentKg float32) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDispensing {
		return Event{}, false
	}

	req := *c.req
	c.dispensedKg = math32.Max(0, currentKg-req.StartWeightKg)
	c.lastTick = now
	elapsed := now.Sub(req.StartTime)

	var kind EventKind
	switch {
	case elapsed > c.cfg.MaxDuration:
		kind = EventTimeout
	case c.dispensedKg >= req.TargetKg:
		kind = EventCompleted
	default:
		return Event{}, false
	}

	c.req = nil
	c.state = StateIdle
	c.running = false
	c.valve.Close()

	return Event{
		Kind:        kind,
		Request:     req,
		DispensedKg: c.dispensedKg,
		Elapsed:     elapsed,
	}, true
}

// Status returns a snapshot of the controller. It has no side effects.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:       c.state,
		Running:     c.running,
		Manual:      c.state == StateManualOpen,
		DispensedKg: c.dispensedKg,
	}
	if c.req != nil {
		s.RequestID = c.req.ID
		s.TargetKg = c.req.TargetKg
		s.Elapsed = c.lastTick.Sub(c.req.StartTime)
	}
	return s
}

// cancelLocked drops the active request. Callers must hold c.mu and retarget
// the valve in the same critical section.
func (c *Controller) cancelLocked(reason string) {
	if c.req == nil {
		return
	}
	log.Printf("feed: request %s canceled by %s after %.3f kg", c.req.ID, reason, c.dispensedKg)
	c.req = nil
	c.dispensedKg = 0
}

// NewSession starts a record of a continuous RUN period at the current weight.
func NewSession(now time.Time, currentKg float32) Request {
	return Request{
		ID:            newRequestID(now),
		StartWeightKg: currentKg,
		StartTime:     now,
	}
}

// EndSession closes a RUN period.
func EndSession(session Request, now time.Time, currentKg float32) Event {
	return Event{
		Kind:        EventSession,
		Request:     session,
		DispensedKg: math32.Max(0, currentKg-session.StartWeightKg),
		Elapsed:     now.Sub(session.StartTime),
	}
}

// newRequestID returns a random ID, or one derived from now when the platform
// has no entropy source.
func newRequestID(now time.Time) uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(now.Format(time.RFC3339Nano)))
	}
	return id
}
