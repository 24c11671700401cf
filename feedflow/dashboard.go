package main

import (
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/feedflow/pkg/appliance"
	"github.com/itohio/feedflow/pkg/command"
	"github.com/itohio/feedflow/pkg/config"
	"github.com/itohio/feedflow/pkg/feed"
	"github.com/itohio/feedflow/pkg/telemetry"
	"github.com/itohio/feedflow/pkg/trend"
)

const uiSource = "ui"

// dashboard holds the UI state. The dashboard is a remote peer of the
// appliance: it attaches while the window is open and talks to it only
// through the command queue and the frame callbacks.
type dashboard struct {
	cfg        *config.Config
	configPath string
	app        *appliance.Appliance
	schedules  scheduleStore // nil without a database
	window     fyne.Window

	trendWidget *trend.Widget
	history     *trend.History

	weightLabel *widget.Label
	tempLabel   *widget.Label
	stateLabel  *widget.Label
	replyLabel  *widget.Label
	amountEntry *widget.Entry
	openBtn     *widget.Button
	runBtn      *widget.Button
}

var _ command.Replier = (*dashboard)(nil)

// runDashboard shows the dashboard window and blocks until it is closed.
func runDashboard(cfg *config.Config, configPath string, a *appliance.Appliance, schedules scheduleStore, stop func()) {
	application := app.NewWithID("com.itohio.feedflow")

	window := application.NewWindow("Feeder")
	window.Resize(fyne.NewSize(1000, 700))
	window.CenterOnScreen()

	span := cfg.Telemetry.Interval * 150 // five minutes at the default cadence
	// Settings edit a copy; the running loop keeps its own configuration
	edit := *cfg
	d := &dashboard{
		cfg:         &edit,
		configPath:  configPath,
		app:         a,
		schedules:   schedules,
		window:      window,
		trendWidget: trend.New(span),
		history:     trend.NewHistory(span),
		weightLabel: widget.NewLabel("Weight: -"),
		tempLabel:   widget.NewLabel("Temp: -"),
		stateLabel:  widget.NewLabel("State: " + feed.StateIdle.String()),
		replyLabel:  widget.NewLabel(""),
	}

	a.OnFrame(d.onFrame)
	a.OnEvent(d.onEvent)

	window.SetContent(container.NewBorder(
		d.createToolbar(),
		d.replyLabel,
		nil,
		nil,
		d.trendWidget,
	))

	window.SetOnClosed(func() {
		a.Queue().Push(command.Event{Kind: command.EventDisconnect, Source: uiSource})
		stop()
	})
	a.Queue().Push(command.Event{Kind: command.EventConnect, Source: uiSource})

	window.ShowAndRun()
}

// createToolbar creates the command buttons and the live readouts.
func (d *dashboard) createToolbar() fyne.CanvasObject {
	d.amountEntry = widget.NewEntry()
	d.amountEntry.SetPlaceHolder("kg")
	d.amountEntry.SetText("0.5")

	feedBtn := widget.NewButtonWithIcon("Feed", theme.MediaPlayIcon(), func() {
		d.send("FEED_NOW:" + strings.TrimSpace(d.amountEntry.Text))
	})

	d.openBtn = widget.NewButton("Open", func() { d.send("SERVO_OPEN") })
	closeBtn := widget.NewButton("Close", func() { d.send("SERVO_CLOSE") })

	d.runBtn = widget.NewButtonWithIcon("Run", theme.MediaFastForwardIcon(), func() { d.send("RUN") })
	stopBtn := widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() { d.send("STOP") })

	statusBtn := widget.NewButtonWithIcon("", theme.InfoIcon(), func() { d.send("STATUS") })
	scheduleBtn := widget.NewButtonWithIcon("", theme.HistoryIcon(), func() {
		showScheduleDialog(d)
	})
	if d.schedules == nil {
		scheduleBtn.Disable()
	}
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(d)
	})

	amount := container.NewGridWrap(fyne.NewSize(80, d.amountEntry.MinSize().Height), d.amountEntry)

	return container.NewVBox(
		container.NewBorder(
			nil,
			nil,
			container.NewHBox(amount, feedBtn, d.openBtn, closeBtn, d.runBtn, stopBtn),
			container.NewHBox(statusBtn, scheduleBtn, settingsBtn),
			nil,
		),
		container.NewHBox(d.weightLabel, d.tempLabel, d.stateLabel),
	)
}

// send queues a command line for the control loop.
func (d *dashboard) send(line string) {
	d.app.Queue().Push(command.Event{
		Kind:   command.EventLine,
		Source: uiSource,
		Line:   line,
		Reply:  d,
	})
}

// Reply shows a command outcome. Called from the control loop.
func (d *dashboard) Reply(msg string) error {
	status := d.app.Status()
	fyne.Do(func() {
		d.replyLabel.SetText(msg)
		d.updateStatus(status)
	})
	return nil
}

// onFrame is called from the control loop for every telemetry frame.
func (d *dashboard) onFrame(f telemetry.Frame) {
	d.history.Add(trend.PointFromFrame(f))
	points := d.history.Points(nil)
	status := d.app.Status()

	fyne.Do(func() {
		d.weightLabel.SetText(fmt.Sprintf("Weight: %.3f kg", f.WeightKg))
		if f.SensorFault {
			d.tempLabel.SetText("Temp: probe fault")
		} else {
			d.tempLabel.SetText(fmt.Sprintf("Temp: %.2f °C", f.TempC))
		}
		d.updateStatus(status)
		d.trendWidget.UpdateData(points)
	})
}

// onEvent is called from the control loop when a feed request or a RUN period finishes.
func (d *dashboard) onEvent(ev feed.Event) {
	msg := fmt.Sprintf("Feed %s: %.3f of %.3f kg in %s", ev.Kind, ev.DispensedKg, ev.Request.TargetKg, ev.Elapsed.Round(time.Millisecond))
	if ev.Kind == feed.EventSession {
		msg = fmt.Sprintf("Run: %.3f kg in %s", ev.DispensedKg, ev.Elapsed.Round(time.Millisecond))
	}
	status := d.app.Status()
	fyne.Do(func() {
		d.replyLabel.SetText(msg)
		d.updateStatus(status)
	})
}

// updateStatus updates the state readout and button highlights.
func (d *dashboard) updateStatus(s feed.Status) {
	text := "State: " + s.State.String()
	if s.Active() {
		text += fmt.Sprintf(" %.3f/%.3f kg", s.DispensedKg, s.TargetKg)
	}
	d.stateLabel.SetText(text)

	updateButton(d.openBtn, s.Manual)
	updateButton(d.runBtn, s.Running)
}

// updateButton updates a toggle-like button's visual state.
func updateButton(btn *widget.Button, isOn bool) {
	if isOn {
		btn.Importance = widget.HighImportance
	} else {
		btn.Importance = widget.MediumImportance
	}
	btn.Refresh()
}
