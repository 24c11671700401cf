package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/feedflow/pkg/link"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
// Changes are written to the configuration file and take effect on the next start.
func showSettingsDialog(d *dashboard) {
	tabs := container.NewAppTabs(
		createSerialTab(d),
		createFeedTab(d),
		createFilterTab(d),
		createTelemetryTab(d),
		createMQTTTab(d),
		createMockTab(d),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	dlg := dialog.NewCustom("Settings", "Close", content, d.window)
	dlg.Resize(fyne.NewSize(600, 500))
	dlg.Show()
}

// save validates and writes the configuration.
func (d *dashboard) save() {
	if err := d.cfg.Validate(); err != nil {
		dialog.ShowError(err, d.window)
		return
	}
	if err := d.cfg.Save(d.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), d.window)
		return
	}
	dialog.ShowInformation("Settings", "Saved. Restart to apply.", d.window)
}

// createSerialTab creates the console port tab.
func createSerialTab(d *dashboard) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{""}
	portMap := map[string]string{"": ""} // display name to port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := d.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	portSelect.PlaceHolder = "stdin/stdout"
	portSelect.SetSelected(currentDisplay)

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(d.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Console Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			d.cfg.Serial.Port = portMap[portSelect.Selected]
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				d.cfg.Serial.BaudRate = baud
			}
			d.save()
		},
	}

	return container.NewTabItem("Serial", form)
}

// createFeedTab creates the dispensing bounds and servo tab.
func createFeedTab(d *dashboard) *container.TabItem {
	maxFeedEntry := floatEntry(d.cfg.Feed.MaxFeedKg, "%.3f")
	maxDurationEntry := widget.NewEntry()
	maxDurationEntry.SetText(d.cfg.Feed.MaxDuration.String())

	openAngleEntry := widget.NewEntry()
	openAngleEntry.SetText(strconv.Itoa(int(d.cfg.Servo.OpenAngle)))
	closeAngleEntry := widget.NewEntry()
	closeAngleEntry.SetText(strconv.Itoa(int(d.cfg.Servo.CloseAngle)))

	foldCaseCheck := widget.NewCheck("", nil)
	foldCaseCheck.SetChecked(d.cfg.Command.FoldCase)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Max Feed (kg)", Widget: maxFeedEntry},
			{Text: "Max Duration", Widget: maxDurationEntry},
			{Text: "Open Angle (°)", Widget: openAngleEntry},
			{Text: "Close Angle (°)", Widget: closeAngleEntry},
			{Text: "Case-insensitive Commands", Widget: foldCaseCheck},
		},
		OnSubmit: func() {
			parseFloat32(maxFeedEntry, &d.cfg.Feed.MaxFeedKg)
			parseDuration(maxDurationEntry, &d.cfg.Feed.MaxDuration)
			if v, err := strconv.Atoi(openAngleEntry.Text); err == nil {
				d.cfg.Servo.OpenAngle = int32(v)
			}
			if v, err := strconv.Atoi(closeAngleEntry.Text); err == nil {
				d.cfg.Servo.CloseAngle = int32(v)
			}
			d.cfg.Command.FoldCase = foldCaseCheck.Checked
			d.save()
		},
	}

	return container.NewTabItem("Feed", form)
}

// createFilterTab creates the weight filter tab.
func createFilterTab(d *dashboard) *container.TabItem {
	fastEntry := floatEntry(d.cfg.Filter.FastAlpha, "%.2f")
	slowEntry := floatEntry(d.cfg.Filter.SlowAlpha, "%.2f")
	jumpEntry := floatEntry(d.cfg.Filter.JumpThresholdKg, "%.3f")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Fast Alpha", Widget: fastEntry},
			{Text: "Slow Alpha", Widget: slowEntry},
			{Text: "Jump Threshold (kg)", Widget: jumpEntry},
		},
		OnSubmit: func() {
			parseFloat32(fastEntry, &d.cfg.Filter.FastAlpha)
			parseFloat32(slowEntry, &d.cfg.Filter.SlowAlpha)
			parseFloat32(jumpEntry, &d.cfg.Filter.JumpThresholdKg)
			d.save()
		},
	}

	return container.NewTabItem("Filter", form)
}

// createTelemetryTab creates the reporting and alert tab.
func createTelemetryTab(d *dashboard) *container.TabItem {
	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(d.cfg.Telemetry.Interval.String())
	thresholdEntry := floatEntry(d.cfg.Telemetry.DetectThresholdKg, "%.3f")
	highTempEntry := floatEntry(d.cfg.Alerts.HighTempC, "%.1f")
	cooldownEntry := widget.NewEntry()
	cooldownEntry.SetText(d.cfg.Alerts.Cooldown.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Interval", Widget: intervalEntry},
			{Text: "Detect Threshold (kg)", Widget: thresholdEntry},
			{Text: "High Temp Alert (°C)", Widget: highTempEntry},
			{Text: "Alert Cooldown", Widget: cooldownEntry},
		},
		OnSubmit: func() {
			parseDuration(intervalEntry, &d.cfg.Telemetry.Interval)
			parseFloat32(thresholdEntry, &d.cfg.Telemetry.DetectThresholdKg)
			parseFloat32(highTempEntry, &d.cfg.Alerts.HighTempC)
			parseDuration(cooldownEntry, &d.cfg.Alerts.Cooldown)
			d.save()
		},
	}

	return container.NewTabItem("Telemetry", form)
}

// createMQTTTab creates the wireless link tab.
func createMQTTTab(d *dashboard) *container.TabItem {
	enabledCheck := widget.NewCheck("", nil)
	enabledCheck.SetChecked(d.cfg.MQTT.Enabled)

	brokerEntry := widget.NewEntry()
	brokerEntry.SetText(d.cfg.MQTT.Broker)
	clientIDEntry := widget.NewEntry()
	clientIDEntry.SetText(d.cfg.MQTT.ClientID)
	commandEntry := widget.NewEntry()
	commandEntry.SetText(d.cfg.MQTT.CommandTopic)
	dataEntry := widget.NewEntry()
	dataEntry.SetText(d.cfg.MQTT.DataTopic)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Enabled", Widget: enabledCheck},
			{Text: "Broker", Widget: brokerEntry},
			{Text: "Client ID", Widget: clientIDEntry},
			{Text: "Command Topic", Widget: commandEntry},
			{Text: "Data Topic", Widget: dataEntry},
		},
		OnSubmit: func() {
			d.cfg.MQTT.Enabled = enabledCheck.Checked
			d.cfg.MQTT.Broker = brokerEntry.Text
			d.cfg.MQTT.ClientID = clientIDEntry.Text
			d.cfg.MQTT.CommandTopic = commandEntry.Text
			d.cfg.MQTT.DataTopic = dataEntry.Text
			d.save()
		},
	}

	return container.NewTabItem("MQTT", form)
}

// createMockTab creates the simulated hopper tab.
func createMockTab(d *dashboard) *container.TabItem {
	flowEntry := floatEntry(d.cfg.Mock.FlowRateKgPerS, "%.3f")
	startEntry := floatEntry(d.cfg.Mock.StartKg, "%.3f")
	noiseEntry := floatEntry(d.cfg.Mock.NoiseKg, "%.4f")
	tempEntry := floatEntry(d.cfg.Mock.TempC, "%.1f")

	probeAbsentCheck := widget.NewCheck("", nil)
	probeAbsentCheck.SetChecked(d.cfg.Mock.ProbeAbsent)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Flow Rate (kg/s)", Widget: flowEntry},
			{Text: "Start Weight (kg)", Widget: startEntry},
			{Text: "Noise (kg)", Widget: noiseEntry},
			{Text: "Water Temp (°C)", Widget: tempEntry},
			{Text: "Probe Absent", Widget: probeAbsentCheck},
		},
		OnSubmit: func() {
			parseFloat32(flowEntry, &d.cfg.Mock.FlowRateKgPerS)
			parseFloat32(startEntry, &d.cfg.Mock.StartKg)
			parseFloat32(noiseEntry, &d.cfg.Mock.NoiseKg)
			parseFloat32(tempEntry, &d.cfg.Mock.TempC)
			d.cfg.Mock.ProbeAbsent = probeAbsentCheck.Checked
			d.save()
		},
	}

	return container.NewTabItem("Mock", form)
}

func floatEntry(v float32, format string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(fmt.Sprintf(format, v))
	return e
}

// parseFloat32 stores the entry value in dst when it parses.
func parseFloat32(e *widget.Entry, dst *float32) {
	if v, err := strconv.ParseFloat(e.Text, 32); err == nil {
		*dst = float32(v)
	}
}

// parseDuration stores the entry value in dst when it parses.
func parseDuration(e *widget.Entry, dst *time.Duration) {
	if v, err := time.ParseDuration(e.Text); err == nil {
		*dst = v
	}
}
