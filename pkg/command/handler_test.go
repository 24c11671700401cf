package command

import (
	"sync"
	"testing"
	"time"

	"github.com/itohio/feedflow/pkg/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type valve struct {
	open   bool
	writes int
}

func (v *valve) Open()  { v.open = true; v.writes++ }
func (v *valve) Close() { v.open = false; v.writes++ }

type fixture struct {
	ctrl    *feed.Controller
	valve   *valve
	handler *Handler
	weight  float32
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		valve:  &valve{},
		weight: 2.0,
		now:    time.Unix(1700000000, 0),
	}
	f.ctrl = feed.New(feed.Config{MaxFeedKg: 5.0, MaxDuration: 30 * time.Second}, f.valve)
	f.handler = NewHandler(f.ctrl, func() float32 { return f.weight }, Policy{})
	return f
}

func TestHandler_FeedNow(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.Handle("FEED_NOW:0.5\n", f.now)
	require.NoError(t, err)
	assert.Equal(t, "FEED_STARTED:0.500", reply)

	s := f.ctrl.Status()
	assert.Equal(t, feed.StateDispensing, s.State)
	assert.Equal(t, float32(0.5), s.TargetKg)
	assert.True(t, f.valve.open)

	// The start weight is the filtered weight at acceptance
	f.weight = 2.503
	ev, done := f.ctrl.Tick(f.now.Add(500*time.Millisecond), f.weight)
	require.True(t, done)
	assert.Equal(t, feed.EventCompleted, ev.Kind)
}

func TestHandler_FeedNowAboveMaxLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Handle("SERVO_OPEN", f.now)
	require.NoError(t, err)
	before := f.ctrl.Status()
	writes := f.valve.writes

	reply, err := f.handler.Handle("FEED_NOW:7.0", f.now)
	require.ErrorIs(t, err, feed.ErrInvalidAmount)
	assert.Equal(t, ReplyInvalidAmount, reply)
	assert.Equal(t, before, f.ctrl.Status())
	assert.Equal(t, writes, f.valve.writes, "no actuator change")
}

func TestHandler_MalformedAmount(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.Handle("FEED_NOW:lots", f.now)
	require.ErrorIs(t, err, feed.ErrInvalidAmount)
	assert.Equal(t, ReplyInvalidAmount, reply)
	assert.Equal(t, feed.StateIdle, f.ctrl.Status().State)
}

func TestHandler_FeedInProgress(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Handle("FEED_NOW:1", f.now)
	require.NoError(t, err)

	reply, err := f.handler.Handle("FEED_NOW:2", f.now.Add(time.Second))
	require.ErrorIs(t, err, feed.ErrFeedInProgress)
	assert.Equal(t, ReplyFeedInProgress, reply)
	assert.Equal(t, float32(1), f.ctrl.Status().TargetKg)
}

func TestHandler_UnknownCommandNeverChangesState(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Handle("FEED_NOW:1", f.now)
	require.NoError(t, err)
	before := f.ctrl.Status()
	writes := f.valve.writes

	for _, line := range []string{"", "OPEN", "servo_close", "FEED_NOW", "STATUS please"} {
		reply, err := f.handler.Handle(line, f.now)
		require.ErrorIs(t, err, ErrUnknownCommand, line)
		assert.Equal(t, ReplyUnknownCommand, reply)
	}

	assert.Equal(t, before, f.ctrl.Status())
	assert.Equal(t, writes, f.valve.writes)
}

func TestHandler_ManualOverrides(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Handle("FEED_NOW:1", f.now)
	require.NoError(t, err)

	reply, err := f.handler.Handle("SERVO_OPEN", f.now)
	require.NoError(t, err)
	assert.Equal(t, ReplyOpened, reply)
	assert.Equal(t, feed.StateManualOpen, f.ctrl.Status().State)
	assert.Zero(t, f.ctrl.Status().RequestID)

	reply, err = f.handler.Handle("SERVO_CLOSE", f.now)
	require.NoError(t, err)
	assert.Equal(t, ReplyClosed, reply)
	assert.Equal(t, feed.StateIdle, f.ctrl.Status().State)
	assert.False(t, f.valve.open)
}

func TestHandler_RunStop(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.Handle("start", f.now)
	require.NoError(t, err)
	assert.Equal(t, ReplyRunning, reply)
	assert.True(t, f.ctrl.Status().Running)
	assert.True(t, f.valve.open)

	reply, err = f.handler.Handle("HALT", f.now)
	require.NoError(t, err)
	assert.Equal(t, ReplyStopped, reply)
	assert.False(t, f.ctrl.Status().Running)
	assert.False(t, f.valve.open)
}

func TestHandler_Status(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.Handle("STATUS", f.now)
	require.NoError(t, err)
	assert.Equal(t, "STATUS:IDLE,running=0,manual=0,target=0.000,dispensed=0.000,weight=2.000", reply)

	_, err = f.handler.Handle("FEED_NOW:0.5", f.now)
	require.NoError(t, err)
	f.ctrl.Tick(f.now.Add(time.Second), 2.25)

	reply, err = f.handler.Handle("status", f.now)
	require.NoError(t, err)
	assert.Equal(t, "STATUS:DISPENSING,running=0,manual=0,target=0.500,dispensed=0.250,weight=2.000", reply)
}

type recorder struct {
	mu      sync.Mutex
	replies []string
}

func (r *recorder) Reply(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, msg)
	return nil
}

func TestQueue_DrainInOrder(t *testing.T) {
	q := NewQueue(4)
	r := &recorder{}

	assert.True(t, q.Push(Event{Kind: EventConnect, Source: "mqtt"}))
	assert.True(t, q.Push(Event{Kind: EventLine, Source: "mqtt", Line: "RUN", Reply: r}))
	assert.True(t, q.Push(Event{Kind: EventDisconnect, Source: "mqtt"}))
	assert.Equal(t, 3, q.Len())

	var kinds []EventKind
	n := q.Drain(func(ev Event) { kinds = append(kinds, ev.Kind) })

	assert.Equal(t, 3, n)
	assert.Equal(t, []EventKind{EventConnect, EventLine, EventDisconnect}, kinds)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(2)

	assert.True(t, q.Push(Event{Line: "1"}))
	assert.True(t, q.Push(Event{Line: "2"}))
	assert.False(t, q.Push(Event{Line: "3"}))

	var lines []string
	q.Drain(func(ev Event) { lines = append(lines, ev.Line) })
	assert.Equal(t, []string{"1", "2"}, lines)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue(1000)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(Event{Kind: EventLine, Line: "STATUS"})
			}
		}()
	}
	wg.Wait()

	total := 0
	for q.Len() > 0 {
		total += q.Drain(func(Event) {})
	}
	assert.Equal(t, 400, total)
}
