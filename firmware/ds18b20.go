//go:build tinygo

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/onewire"

	"github.com/itohio/feedflow/pkg/sensor"
)

// thermometer reads a single DS18B20 without holding up the control loop:
// each ReadC collects the conversion started by the previous call and starts
// the next one.
type thermometer struct {
	bus   onewire.Device
	dev   ds18b20.Device
	romID []uint8 // nil until the probe answers

	requested time.Time
	lastC     float32
}

var _ sensor.Probe = (*thermometer)(nil)

func newThermometer(pin machine.Pin) *thermometer {
	bus := onewire.New(pin)
	return &thermometer{
		bus:   bus,
		dev:   ds18b20.New(bus),
		lastC: sensor.AbsentC,
	}
}

func (t *thermometer) ReadC() float32 {
	if t.romID == nil {
		id, err := t.bus.ReadAddress()
		if err != nil {
			return sensor.AbsentC
		}
		t.romID = id
	}

	if !t.requested.IsZero() {
		if time.Since(t.requested) < DS18B20_CONVERSION {
			return t.lastC
		}
		milli, err := t.dev.ReadTemperature(t.romID)
		if err != nil {
			// Unplugged; search again on the next read
			t.romID = nil
			t.requested = time.Time{}
			t.lastC = sensor.AbsentC
			return t.lastC
		}
		t.lastC = float32(milli) / 1000
	}

	t.dev.RequestTemperature(t.romID)
	t.requested = time.Now()
	return t.lastC
}
