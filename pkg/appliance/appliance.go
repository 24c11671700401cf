package appliance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/itohio/feedflow/pkg/command"
	"github.com/itohio/feedflow/pkg/config"
	"github.com/itohio/feedflow/pkg/feed"
	"github.com/itohio/feedflow/pkg/filter"
	"github.com/itohio/feedflow/pkg/schedule"
	"github.com/itohio/feedflow/pkg/sensor"
	"github.com/itohio/feedflow/pkg/servo"
	"github.com/itohio/feedflow/pkg/telemetry"
)

// AlertHighTemp is the alert kind raised for water above the configured limit.
const AlertHighTemp = "HIGH_TEMP"

// Link is an outbound transport. Frames and feed events are sent on every link.
type Link interface {
	Name() string
	Send(msg string) error
}

// Recorder persists finished requests, temperature readings and alerts.
type Recorder interface {
	RecordFeed(ev feed.Event, end time.Time) error
	RecordTemperature(at time.Time, tempC float32) error
	RecordAlert(at time.Time, kind string, value float32) error
}

// Options contains the collaborators of an appliance.
type Options struct {
	Config   *config.Config
	Weight   sensor.WeightSource
	Probe    sensor.Probe    // nil means no probe is fitted
	Actuator servo.Actuator  // PWM primitive behind the servo mapper
	Recorder Recorder        // optional
	Schedule schedule.Source // optional daily feeds
	Start    time.Time       // zero means time.Now()
}

// Appliance is the process context. It owns every component and is driven by
// one control loop: Step is the only writer of device state. Transports hand
// their input over through the command queue.
type Appliance struct {
	cfg      *config.Config
	weight   sensor.WeightSource
	recorder Recorder

	queue   *command.Queue
	filter  *filter.Adaptive
	mapper  *servo.Mapper
	gate    *servo.Gate
	ctrl    *feed.Controller
	handler *command.Handler
	encoder *telemetry.Encoder

	scheduler      *schedule.Scheduler // nil without a schedule source
	scheduledReq   uuid.UUID           // request started for scheduledEntry
	scheduledEntry int64
	session        *feed.Request // open RUN period

	attached  map[string]bool // remote peers by source
	lastAlert time.Time

	mu         sync.RWMutex
	filteredKg float32
	links      []Link
	onFrame    []func(telemetry.Frame)
	onEvent    []func(feed.Event)
}

// New creates an appliance in Idle with the actuator closed.
func New(opts Options) (*Appliance, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Weight == nil {
		return nil, errors.New("weight source is required")
	}
	if opts.Actuator == nil {
		return nil, errors.New("actuator is required")
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}

	a := &Appliance{
		cfg:      cfg,
		weight:   opts.Weight,
		recorder: opts.Recorder,
		queue:    command.NewQueue(command.DefaultQueueSize),
		filter:   filter.New(cfg.Filter.FastAlpha, cfg.Filter.SlowAlpha, cfg.Filter.JumpThresholdKg),
		attached: make(map[string]bool),
	}
	if opts.Schedule != nil {
		a.scheduler = schedule.New(opts.Schedule, cfg.Schedule.CheckInterval)
	}

	a.mapper = servo.NewMapper(servo.Range{
		MinAngle:   cfg.Servo.MinAngle,
		MaxAngle:   cfg.Servo.MaxAngle,
		MinPulseUs: cfg.Servo.MinPulseUs,
		MaxPulseUs: cfg.Servo.MaxPulseUs,
	}, opts.Actuator)
	a.gate = servo.NewGate(a.mapper, cfg.Servo.OpenAngle, cfg.Servo.CloseAngle)

	a.ctrl = feed.New(feed.Config{
		MaxFeedKg:   cfg.Feed.MaxFeedKg,
		MaxDuration: cfg.Feed.MaxDuration,
	}, a.gate)
	a.handler = command.NewHandler(a.ctrl, a.FilteredKg, command.Policy{FoldCase: cfg.Command.FoldCase})

	variant := telemetry.VariantSweep
	if cfg.Servo.Mode == config.ServoModeGate {
		variant = telemetry.VariantGate
	}
	a.encoder = telemetry.NewEncoder(telemetry.Config{
		Interval:          cfg.Telemetry.Interval,
		DetectThresholdKg: cfg.Telemetry.DetectThresholdKg,
		Variant:           variant,
	}, opts.Probe, opts.Start)

	return a, nil
}

// Queue returns the inbound event queue transports push to.
func (a *Appliance) Queue() *command.Queue {
	return a.queue
}

// AddLink registers an outbound transport.
func (a *Appliance) AddLink(l Link) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.links = append(a.links, l)
}

// OnFrame registers a callback invoked with every telemetry frame.
func (a *Appliance) OnFrame(fn func(telemetry.Frame)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFrame = append(a.onFrame, fn)
}

// OnEvent registers a callback invoked when a feed request or a RUN period finishes.
func (a *Appliance) OnEvent(fn func(feed.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onEvent = append(a.onEvent, fn)
}

// FilteredKg returns the current filtered weight.
func (a *Appliance) FilteredKg() float32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.filteredKg
}

// Status returns the feed controller status.
func (a *Appliance) Status() feed.Status {
	return a.ctrl.Status()
}

// ValveOpen reports whether the actuator is commanded to the open position.
func (a *Appliance) ValveOpen() bool {
	return a.gate.IsOpen()
}

// ServoAngle returns the last commanded logical servo angle.
func (a *Appliance) ServoAngle() int32 {
	return a.mapper.Angle()
}

// Run steps the appliance every loop period until ctx is canceled.
func (a *Appliance) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Loop.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.Step(now)
		}
	}
}

// Step runs one control loop iteration: apply pending commands, fold in a new
// weight sample, advance the feed state machine, start scheduled feeds and
// report telemetry.
func (a *Appliance) Step(now time.Time) {
	a.queue.Drain(func(ev command.Event) {
		a.handleEvent(ev, now)
	})

	if raw, ok := a.weight.Poll(); ok {
		if math32.IsNaN(raw) || math32.IsInf(raw, 0) {
			log.Printf("SensorFault: load cell read %v", raw)
		} else {
			kg := a.filter.Update(raw)
			a.mu.Lock()
			a.filteredKg = kg
			a.mu.Unlock()
		}
	}
	kg := a.FilteredKg()

	if ev, done := a.ctrl.Tick(now, kg); done {
		a.finish(ev, now)
	}
	if a.scheduler != nil {
		a.runSchedule(now, kg)
	}

	status := a.ctrl.Status()
	a.trackSession(now, kg, status.Running)

	frame, ok := a.encoder.Encode(now, telemetry.Snapshot{
		Attached:   len(a.attached) > 0,
		WeightKg:   kg,
		FeedActive: status.Active(),
		Running:    status.Running,
		ServoAngle: a.mapper.Angle(),
	})
	if ok {
		a.report(frame, status)
	}
}

func (a *Appliance) handleEvent(ev command.Event, now time.Time) {
	switch ev.Kind {
	case command.EventConnect:
		a.attached[ev.Source] = true
		log.Printf("peer attached via %s", ev.Source)
	case command.EventDisconnect:
		if !a.attached[ev.Source] {
			return
		}
		delete(a.attached, ev.Source)
		log.Printf("peer detached from %s", ev.Source)
	case command.EventLine:
		log.Printf("Command received: %s", ev.Line)
		reply, _ := a.handler.Handle(ev.Line, now)
		if ev.Reply == nil {
			return
		}
		if err := ev.Reply.Reply(reply); err != nil {
			log.Printf("failed to reply on %s: %v", ev.Source, err)
		}
	}
}

func (a *Appliance) finish(ev feed.Event, now time.Time) {
	switch ev.Kind {
	case feed.EventTimeout:
		log.Printf("SafetyTimeout: request %s stopped after %s with %.3f of %.3f kg",
			ev.Request.ID, ev.Elapsed, ev.DispensedKg, ev.Request.TargetKg)
		a.broadcast(fmt.Sprintf("FEED_TIMEOUT:%.3f", ev.DispensedKg))
	default:
		log.Printf("feed: request %s done, %.3f kg in %s", ev.Request.ID, ev.DispensedKg, ev.Elapsed)
		a.broadcast(fmt.Sprintf("FEED_DONE:%.3f", ev.DispensedKg))
	}

	if a.scheduledReq == ev.Request.ID {
		if ev.Kind == feed.EventCompleted {
			if err := a.scheduler.Done(a.scheduledEntry); err != nil {
				log.Printf("schedule: %v", err)
			}
		} else {
			log.Printf("schedule: entry %d kept after %s", a.scheduledEntry, ev.Kind)
		}
		a.scheduledReq = uuid.Nil
	}

	a.notify(ev, now)
}

// runSchedule starts the entries that fell due. An entry that cannot start
// stays in the schedule and is tried again the next day.
func (a *Appliance) runSchedule(now time.Time, kg float32) {
	for _, e := range a.scheduler.Due(now) {
		if s := a.ctrl.Status(); s.State != feed.StateIdle || s.Running {
			log.Printf("schedule: skipping %s, feeder is %s running=%t", e, s.State, s.Running)
			continue
		}
		req, err := a.ctrl.RequestFeed(e.AmountKg, now, kg)
		if err != nil {
			log.Printf("schedule: skipping %s: %v", e, err)
			continue
		}
		log.Printf("schedule: feeding %s as request %s", e, req.ID)
		a.scheduledReq, a.scheduledEntry = req.ID, e.ID
		a.broadcast(fmt.Sprintf("FEED_STARTED:%.3f", req.TargetKg))
	}
}

// trackSession logs every RUN period as a feed without a target.
func (a *Appliance) trackSession(now time.Time, kg float32, running bool) {
	switch {
	case running && a.session == nil:
		s := feed.NewSession(now, kg)
		a.session = &s
	case !running && a.session != nil:
		ev := feed.EndSession(*a.session, now, kg)
		a.session = nil
		log.Printf("feed: session %s ended, %.3f kg in %s", ev.Request.ID, ev.DispensedKg, ev.Elapsed)
		a.notify(ev, now)
	}
}

// notify records a finished feed and hands it to the event callbacks.
func (a *Appliance) notify(ev feed.Event, now time.Time) {
	if a.recorder != nil {
		if err := a.recorder.RecordFeed(ev, now); err != nil {
			log.Printf("failed to record feed %s: %v", ev.Request.ID, err)
		}
	}

	a.mu.RLock()
	callbacks := a.onEvent
	a.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ev)
	}
}

func (a *Appliance) report(f telemetry.Frame, status feed.Status) {
	a.broadcast(f.String())
	log.Printf("Weight: %.3f kg, Temp: %.2f C, State: %s", f.WeightKg, f.TempC, status.State)

	if !f.SensorFault {
		if a.recorder != nil {
			if err := a.recorder.RecordTemperature(f.Time, f.TempC); err != nil {
				log.Printf("failed to record temperature: %v", err)
			}
		}
		a.checkHighTemp(f)
	}

	a.mu.RLock()
	callbacks := a.onFrame
	a.mu.RUnlock()
	for _, fn := range callbacks {
		fn(f)
	}
}

func (a *Appliance) checkHighTemp(f telemetry.Frame) {
	if f.TempC < a.cfg.Alerts.HighTempC {
		return
	}
	if !a.lastAlert.IsZero() && f.Time.Sub(a.lastAlert) < a.cfg.Alerts.Cooldown {
		return
	}
	a.lastAlert = f.Time

	log.Printf("alert: water temperature %.2f C", f.TempC)
	a.broadcast(fmt.Sprintf("ALERT:%s:%.2f", AlertHighTemp, f.TempC))
	if a.recorder != nil {
		if err := a.recorder.RecordAlert(f.Time, AlertHighTemp, f.TempC); err != nil {
			log.Printf("failed to record alert: %v", err)
		}
	}
}

func (a *Appliance) broadcast(msg string) {
	a.mu.RLock()
	links := a.links
	a.mu.RUnlock()

	for _, l := range links {
		if err := l.Send(msg); err != nil {
			log.Printf("failed to send on %s: %v", l.Name(), err)
		}
	}
}
