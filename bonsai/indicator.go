package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gobonsai/pkg/station"
)

var _ station.Indicator = (*indicator)(nil)

// indicator mirrors the station warning on the toolbar and forwards it to
// the connected device, which drives the warning LED.
type indicator struct {
	state *appState
}

// SetWarning is called by the station from the reading goroutine.
func (i *indicator) SetWarning(on bool) error {
	fyne.Do(func() {
		updateWarningButton(i.state.warningBtn, on)
	})

	device := i.state.device
	if device == nil || !device.IsConnected() {
		return nil
	}
	return device.SetWarning(on)
}

// updateWarningButton updates the visual state of the warning button.
func updateWarningButton(btn *widget.Button, on bool) {
	if on {
		btn.Importance = widget.DangerImportance
	} else {
		btn.Importance = widget.MediumImportance
	}
	btn.Refresh()
}
