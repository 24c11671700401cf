package main

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/feedflow/pkg/schedule"
)

// scheduleStore is the schedule table the dashboard edits.
type scheduleStore interface {
	schedule.Source
	AddSchedule(clock string, kg float32) (int64, error)
}

// showScheduleDialog lists the daily feeds and lets the user add or remove them.
// The control loop picks up changes on its next schedule check.
func showScheduleDialog(d *dashboard) {
	var entries []schedule.Entry

	list := widget.NewList(
		func() int { return len(entries) },
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil,
				widget.NewButtonWithIcon("", theme.DeleteIcon(), nil),
				widget.NewLabel(""))
		},
		nil,
	)

	reload := func() {
		var err error
		entries, err = d.schedules.Schedules()
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to read schedule: %w", err), d.window)
		}
		list.Refresh()
	}

	list.UpdateItem = func(id widget.ListItemID, item fyne.CanvasObject) {
		e := entries[id]
		row := item.(*fyne.Container)
		row.Objects[0].(*widget.Label).SetText(fmt.Sprintf("%s  %.3f kg", e.Clock(), e.AmountKg))
		row.Objects[1].(*widget.Button).OnTapped = func() {
			if err := d.schedules.DeleteSchedule(e.ID); err != nil {
				dialog.ShowError(err, d.window)
			}
			reload()
		}
	}

	clockEntry := widget.NewEntry()
	clockEntry.SetPlaceHolder("HH:MM")
	kgEntry := widget.NewEntry()
	kgEntry.SetPlaceHolder("kg")

	addBtn := widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), func() {
		v, err := strconv.ParseFloat(strings.TrimSpace(kgEntry.Text), 32)
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid amount: %w", err), d.window)
			return
		}
		kg := float32(v)
		if kg > d.cfg.Feed.MaxFeedKg {
			dialog.ShowError(fmt.Errorf("%.3f kg is above the %.3f kg limit", kg, d.cfg.Feed.MaxFeedKg), d.window)
			return
		}
		if _, err := d.schedules.AddSchedule(clockEntry.Text, kg); err != nil {
			dialog.ShowError(err, d.window)
			return
		}
		clockEntry.SetText("")
		kgEntry.SetText("")
		reload()
	})

	form := container.NewGridWithColumns(3, clockEntry, kgEntry, addBtn)
	content := container.NewBorder(nil, form, nil, nil, list)
	reload()

	dlg := dialog.NewCustom("Daily feeds", "Close", content, d.window)
	dlg.Resize(fyne.NewSize(400, 400))
	dlg.Show()
}
