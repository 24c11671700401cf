package telemetry

import (
	"fmt"
	"log"
	"time"

	"github.com/itohio/feedflow/pkg/sensor"
)

// DefaultInterval is the minimum time between two frames.
const DefaultInterval = 2000 * time.Millisecond

// Variant selects the mode-specific frame fields.
type Variant int

const (
	// VariantSweep reports the running flag of a continuous-rotation build.
	VariantSweep Variant = iota
	// VariantGate reports the servo angle and the feed-active flag.
	VariantGate
)

// Config contains the encoder settings.
type Config struct {
	Interval          time.Duration
	DetectThresholdKg float32
	Variant           Variant
}

// Snapshot is the device state the encoder reports on.
type Snapshot struct {
	Attached   bool // a remote peer is listening
	WeightKg   float32
	FeedActive bool
	Running    bool
	ServoAngle int32
}

// Frame is one telemetry report. It is built fresh for every report.
type Frame struct {
	Time        time.Time
	TempC       float32 // 0 when SensorFault is set
	WeightKg    float32 // 0 below the detection threshold
	FeedActive  bool
	Running     bool
	ServoAngle  int32
	SensorFault bool
	Variant     Variant
}

// String encodes the frame as the comma separated wire tuple.
func (f Frame) String() string {
	switch f.Variant {
	case VariantGate:
		return fmt.Sprintf("%.2f,%.3f,%d,%d", f.TempC, f.WeightKg, f.ServoAngle, b2i(f.FeedActive))
	default:
		return fmt.Sprintf("%.2f,%.3f,%d", f.TempC, f.WeightKg, b2i(f.Running))
	}
}

// Encoder produces frames no more often than once per interval and only
// while a peer is attached.
type Encoder struct {
	cfg   Config
	probe sensor.Probe
	last  time.Time
}

// NewEncoder creates an encoder. The first frame is due one interval after start.
func NewEncoder(cfg Config, probe sensor.Probe, start time.Time) *Encoder {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if probe == nil {
		probe = sensor.AbsentProbe{}
	}
	return &Encoder{
		cfg:   cfg,
		probe: probe,
		last:  start,
	}
}

// Encode returns a frame when a peer is attached and the interval has
// elapsed since the last frame. Otherwise it returns false and changes nothing.
func (e *Encoder) Encode(now time.Time, snap Snapshot) (Frame, bool) {
	if !snap.Attached || now.Sub(e.last) < e.cfg.Interval {
		return Frame{}, false
	}
	e.last = now

	f := Frame{
		Time:       now,
		TempC:      e.probe.ReadC(),
		WeightKg:   snap.WeightKg,
		FeedActive: snap.FeedActive,
		Running:    snap.Running,
		ServoAngle: snap.ServoAngle,
		Variant:    e.cfg.Variant,
	}
	if !sensor.ValidC(f.TempC) {
		log.Printf("SensorFault: temperature probe read %v", f.TempC)
		f.TempC = 0
		f.SensorFault = true
	}
	if f.WeightKg < e.cfg.DetectThresholdKg {
		f.WeightKg = 0
	}

	return f, true
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
