//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/itohio/feedflow/pkg/sensor"
)

// hx711 is a bit-banged HX711 load cell amplifier on channel A, gain 128.
type hx711 struct {
	dout  machine.Pin
	sck   machine.Pin
	scale sensor.Scale
}

var _ sensor.WeightSource = (*hx711)(nil)

func newHX711(dout, sck machine.Pin, factor float32) *hx711 {
	dout.Configure(machine.PinConfig{Mode: machine.PinInput})
	sck.Configure(machine.PinConfig{Mode: machine.PinOutput})
	sck.Low()

	return &hx711{
		dout:  dout,
		sck:   sck,
		scale: sensor.Scale{Factor: factor},
	}
}

// ready reports whether a conversion is waiting. DOUT goes low when data is ready.
func (h *hx711) ready() bool {
	return !h.dout.Get()
}

// read clocks out one 24-bit two's complement conversion.
func (h *hx711) read() int32 {
	var v uint32
	for range 24 {
		h.sck.High()
		time.Sleep(time.Microsecond)
		v <<= 1
		if h.dout.Get() {
			v |= 1
		}
		h.sck.Low()
		time.Sleep(time.Microsecond)
	}

	// 25th pulse selects channel A, gain 128 for the next conversion
	h.sck.High()
	time.Sleep(time.Microsecond)
	h.sck.Low()

	// Sign-extend
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// Tare averages n conversions with an empty scale and uses them as the zero offset.
func (h *hx711) Tare(n int) {
	var sum int64
	for i := 0; i < n; i++ {
		for !h.ready() {
			time.Sleep(10 * time.Millisecond)
		}
		sum += int64(h.read())
	}
	h.scale.Tare = int32(sum / int64(n))
}

// Poll returns a new conversion if one is ready.
func (h *hx711) Poll() (float32, bool) {
	if !h.ready() {
		return 0, false
	}
	return h.scale.Kg(h.read()), true
}
