package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/feedflow/pkg/appliance"
	"github.com/itohio/feedflow/pkg/config"
	"github.com/itohio/feedflow/pkg/link"
	"github.com/itohio/feedflow/pkg/sensor"
	"github.com/itohio/feedflow/pkg/servo"
	"github.com/itohio/feedflow/pkg/store"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Console serial port override (e.g., COM3 or /dev/ttyACM0)")
		dbFlag     = flag.String("db", "", "SQLite database path override")
		mqttFlag   = flag.Bool("mqtt", false, "Enable the MQTT link (overrides config)")
		uiFlag     = flag.Bool("ui", false, "Show the dashboard window")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *dbFlag != "" {
		cfg.Store.Path = *dbFlag
	}
	if *mqttFlag {
		cfg.MQTT.Enabled = true
	}

	// Persistence: calibration scalar and logs
	var (
		calibration sensor.CalibrationStore = sensor.NewMemoryStore()
		recorder    appliance.Recorder
		schedules   scheduleStore
	)
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		calibration = db
		recorder = db
		schedules = db
	}

	factor, err := sensor.LoadCalibration(calibration, sensor.CalibrationKey, cfg.Calibration.DefaultFactor, cfg.Calibration.MaxFactor)
	if err != nil {
		log.Printf("Calibration: %v", err)
	}
	log.Printf("Load cell calibration factor: %.2f", factor)

	// The simulated hopper flows while the appliance holds the gate open
	var app *appliance.Appliance
	hopper := sensor.NewMock(&cfg.Mock, func() bool { return app.ValveOpen() })
	hopper.Calibrate(sensor.Scale{Factor: factor})

	app, err = appliance.New(appliance.Options{
		Config:   cfg,
		Weight:   hopper,
		Probe:    hopper,
		Actuator: servo.NewMock(),
		Recorder: recorder,
		Schedule: schedules,
	})
	if err != nil {
		log.Fatalf("Failed to create appliance: %v", err)
	}

	if err := hopper.Connect(); err != nil {
		log.Fatalf("Failed to start hopper simulation: %v", err)
	}
	defer hopper.Close()

	// Local console
	var console *link.Console
	if cfg.Serial.Port == "" {
		console = link.Stdio(app.Queue())
	} else {
		console, err = link.OpenSerial(cfg.Serial.Port, cfg.Serial.BaudRate, app.Queue())
		if err != nil {
			log.Fatalf("Failed to open console: %v", err)
		}
		log.Printf("Console on serial port: %s", cfg.Serial.Port)
	}
	if err := console.Start(); err != nil {
		log.Fatalf("Failed to start console: %v", err)
	}
	defer console.Close()
	app.AddLink(console)

	// Wireless link
	if cfg.MQTT.Enabled {
		m := link.NewMQTT(cfg.MQTT, app.Queue())
		if err := m.Connect(); err != nil {
			log.Printf("MQTT: %v", err)
		}
		defer m.Close()
		app.AddLink(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*uiFlag {
		if err := app.Run(ctx); err != nil {
			log.Printf("Control loop stopped: %v", err)
		}
		return
	}

	go func() {
		if err := app.Run(ctx); err != nil {
			log.Printf("Control loop stopped: %v", err)
		}
	}()
	runDashboard(cfg, *configFlag, app, schedules, stop)
}
