//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Load cell amplifier
	PIN_HX711_DOUT = machine.D1
	PIN_HX711_SCK  = machine.D2
	TARE_SAMPLES   = 10 // conversions averaged for the empty-scale offset

	// Water temperature
	PIN_DS18B20        = machine.D3
	DS18B20_CONVERSION = 750 * time.Millisecond // 12-bit conversion time

	// Servo
	PIN_SERVO = machine.D8

	// Serial configuration
	// Telemetry "24.50,1.234,1\n" is ~14 bytes every 2 s; replies are short.
	UART_BAUD_RATE = 115200
	LINE_BUFFER    = 64 // longest accepted command line
)

// SERVO_PWM is the timer driving PIN_SERVO.
var SERVO_PWM = machine.TCC1
