//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"context"
	"machine"
	"time"

	pwmservo "tinygo.org/x/drivers/servo"

	"github.com/itohio/feedflow/pkg/appliance"
	"github.com/itohio/feedflow/pkg/command"
	"github.com/itohio/feedflow/pkg/config"
	"github.com/itohio/feedflow/pkg/sensor"
)

var uart = machine.UART0

// uartLink is the serial console. The host on the other end is the attached peer.
type uartLink struct{}

func (uartLink) Name() string { return "uart" }

func (uartLink) Send(msg string) error {
	if _, err := uart.Write([]byte(msg)); err != nil {
		return err
	}
	_, err := uart.Write([]byte{'\n'})
	return err
}

func (l uartLink) Reply(msg string) error {
	return l.Send(msg)
}

// servoActuator drives the servo pulse width directly.
type servoActuator struct {
	s pwmservo.Servo
}

func (a servoActuator) SetPulseWidth(us uint16) error {
	a.s.SetMicroseconds(int16(us))
	return nil
}

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	cfg := config.Default()

	factor, err := sensor.LoadCalibration(sensor.NewFlashStore(&machine.Flash), sensor.CalibrationKey, cfg.Calibration.DefaultFactor, cfg.Calibration.MaxFactor)
	if err != nil {
		println("calibration:", err.Error())
	}

	scale := newHX711(PIN_HX711_DOUT, PIN_HX711_SCK, factor)
	scale.Tare(TARE_SAMPLES)

	s, err := pwmservo.New(SERVO_PWM, PIN_SERVO)
	if err != nil {
		println("could not configure servo:", err.Error())
		return
	}

	app, err := appliance.New(appliance.Options{
		Config:   cfg,
		Weight:   scale,
		Probe:    newThermometer(PIN_DS18B20),
		Actuator: servoActuator{s: s},
	})
	if err != nil {
		println("could not create appliance:", err.Error())
		return
	}

	link := uartLink{}
	app.AddLink(link)
	app.Queue().Push(command.Event{Kind: command.EventConnect, Source: link.Name()})

	go processSerial(app.Queue(), link)

	app.Run(context.Background())
}

// processSerial collects UART bytes into lines and queues them for the control loop.
func processSerial(q *command.Queue, reply command.Replier) {
	var (
		buf      [LINE_BUFFER]byte
		pos      int
		overflow bool
	)

	for {
		for uart.Buffered() > 0 {
			data, err := uart.ReadByte()
			if err != nil {
				break
			}

			if data == '\n' || data == '\r' {
				if pos > 0 && !overflow {
					q.Push(command.Event{
						Kind:   command.EventLine,
						Source: "uart",
						Line:   string(buf[:pos]),
						Reply:  reply,
					})
				}
				pos = 0
				overflow = false
				continue
			}

			// Overlong lines are dropped up to the next newline
			if pos == len(buf) {
				overflow = true
				continue
			}
			buf[pos] = data
			pos++
		}
		time.Sleep(5 * time.Millisecond)
	}
}
