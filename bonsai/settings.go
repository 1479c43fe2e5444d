package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/sensor"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createStationTab(state),
		createCalibrationTab(state),
		createPublisherTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and writes the configuration, reporting errors in a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// restartStation rebuilds the station after settings that affect it changed,
// reconnecting if a device was connected.
func restartStation(state *appState) {
	wasConnected := state.device != nil && state.device.IsConnected()

	closeChain(state.chain)
	state.chain = nil
	state.device = nil

	if err := buildStation(state); err != nil {
		dialog.ShowError(fmt.Errorf("failed to rebuild station: %w", err), state.window)
		return
	}

	if wasConnected {
		handleConnect(state)
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := sensor.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

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

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected
			}

			changed := state.cfg.Serial.Port != selectedPort
			state.cfg.Serial.Port = selectedPort
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				changed = changed || state.cfg.Serial.BaudRate != baud
				state.cfg.Serial.BaudRate = baud
			}
			if !saveConfig(state) {
				return
			}

			// Reconnect with the new port
			if changed && !state.useMock && state.device != nil && state.device.IsConnected() {
				handleConnect(state)
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createStationTab creates the sampling and warning configuration tab.
func createStationTab(state *appState) *container.TabItem {
	sampleEntry := widget.NewEntry()
	sampleEntry.SetText(state.cfg.Station.SampleInterval.String())

	publishEntry := widget.NewEntry()
	publishEntry.SetText(state.cfg.Station.PublishInterval.String())

	historyEntry := widget.NewEntry()
	historyEntry.SetText(strconv.Itoa(state.cfg.Station.HistorySize))

	oversampleEntry := widget.NewEntry()
	oversampleEntry.SetText(strconv.Itoa(state.cfg.Station.Oversample))

	warningEntry := widget.NewEntry()
	warningEntry.SetText(strconv.Itoa(int(state.cfg.Station.WarningLevel)))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sample Interval", Widget: sampleEntry},
			{Text: "Publish Interval", Widget: publishEntry},
			{Text: "History Size", Widget: historyEntry},
			{Text: "Oversample (0=disabled)", Widget: oversampleEntry},
			{Text: "Warning Level (%)", Widget: warningEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(sampleEntry.Text); err == nil && d > 0 {
				state.cfg.Station.SampleInterval = d
			}
			if d, err := time.ParseDuration(publishEntry.Text); err == nil && d > 0 {
				state.cfg.Station.PublishInterval = d
			}
			if n, err := strconv.Atoi(historyEntry.Text); err == nil && n > 0 {
				state.cfg.Station.HistorySize = n
			}
			if n, err := strconv.Atoi(oversampleEntry.Text); err == nil && n >= 0 {
				state.cfg.Station.Oversample = n
			}
			if n, err := strconv.ParseUint(warningEntry.Text, 10, 8); err == nil && n <= 100 {
				state.cfg.Station.WarningLevel = uint8(n)
			}
			if saveConfig(state) {
				restartStation(state)
			}
		},
	}

	return container.NewTabItem("Station", form)
}

// createCalibrationTab creates the water level calibration table tab.
func createCalibrationTab(state *appState) *container.TabItem {
	upperEntry := widget.NewEntry()
	upperEntry.SetText(strconv.Itoa(int(state.cfg.Calibration.UpperLimit)))

	lowerEntry := widget.NewEntry()
	lowerEntry.SetText(strconv.Itoa(int(state.cfg.Calibration.LowerLimit)))

	items := []*widget.FormItem{
		{Text: "Upper Limit (100%)", Widget: upperEntry},
		{Text: "Lower Limit (0%)", Widget: lowerEntry},
	}

	var pointLower, pointUpper [calibrate.Points]*widget.Entry
	for i := 0; i < calibrate.Points; i++ {
		pointLower[i] = widget.NewEntry()
		pointUpper[i] = widget.NewEntry()
		if i < len(state.cfg.Calibration.Points) {
			pointLower[i].SetText(strconv.Itoa(int(state.cfg.Calibration.Points[i].Lower)))
			pointUpper[i].SetText(strconv.Itoa(int(state.cfg.Calibration.Points[i].Upper)))
		}
		items = append(items, &widget.FormItem{
			Text:   fmt.Sprintf("%d%% [lower, upper)", i*10),
			Widget: container.NewGridWithColumns(2, pointLower[i], pointUpper[i]),
		})
	}

	form := &widget.Form{
		Items: items,
		OnSubmit: func() {
			if v, err := strconv.ParseInt(upperEntry.Text, 10, 16); err == nil {
				state.cfg.Calibration.UpperLimit = int16(v)
			}
			if v, err := strconv.ParseInt(lowerEntry.Text, 10, 16); err == nil {
				state.cfg.Calibration.LowerLimit = int16(v)
			}

			points := make([]config.CalibrationPoint, calibrate.Points)
			for i := range points {
				lo, errLo := strconv.ParseInt(pointLower[i].Text, 10, 16)
				hi, errHi := strconv.ParseInt(pointUpper[i].Text, 10, 16)
				if errLo != nil || errHi != nil {
					continue // Empty range, matches nothing
				}
				points[i] = config.CalibrationPoint{Lower: int16(lo), Upper: int16(hi)}
			}
			state.cfg.Calibration.Points = points

			if saveConfig(state) {
				restartStation(state)
			}
		},
	}

	return container.NewTabItem("Calibration", container.NewVScroll(form))
}

// createPublisherTab creates the cloud publisher configuration tab.
func createPublisherTab(state *appState) *container.TabItem {
	enabledCheck := widget.NewCheck("", nil)
	enabledCheck.SetChecked(state.cfg.Publisher.Enabled)

	urlEntry := widget.NewEntry()
	urlEntry.SetText(state.cfg.Publisher.URL)

	keyEntry := widget.NewPasswordEntry()
	keyEntry.SetText(state.cfg.Publisher.APIKey)

	channelEntry := widget.NewEntry()
	channelEntry.SetText(strconv.FormatUint(state.cfg.Publisher.ChannelID, 10))

	fieldEntries := []*widget.Entry{widget.NewEntry(), widget.NewEntry(), widget.NewEntry()}
	fieldEntries[0].SetText(strconv.Itoa(state.cfg.Sensors.Water.Field))
	fieldEntries[1].SetText(strconv.Itoa(state.cfg.Sensors.Temperature.Field))
	fieldEntries[2].SetText(strconv.Itoa(state.cfg.Sensors.Humidity.Field))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Enabled", Widget: enabledCheck},
			{Text: "URL", Widget: urlEntry},
			{Text: "API Key", Widget: keyEntry},
			{Text: "Channel ID", Widget: channelEntry},
			{Text: "Water Field", Widget: fieldEntries[0]},
			{Text: "Temperature Field", Widget: fieldEntries[1]},
			{Text: "Humidity Field", Widget: fieldEntries[2]},
		},
		OnSubmit: func() {
			state.cfg.Publisher.Enabled = enabledCheck.Checked
			state.cfg.Publisher.URL = urlEntry.Text
			state.cfg.Publisher.APIKey = keyEntry.Text
			if id, err := strconv.ParseUint(channelEntry.Text, 10, 64); err == nil {
				state.cfg.Publisher.ChannelID = id
			}

			fields := []*int{
				&state.cfg.Sensors.Water.Field,
				&state.cfg.Sensors.Temperature.Field,
				&state.cfg.Sensors.Humidity.Field,
			}
			for i, f := range fields {
				if n, err := strconv.Atoi(fieldEntries[i].Text); err == nil {
					*f = n
				}
			}

			if saveConfig(state) {
				restartStation(state)
			}
		},
	}

	return container.NewTabItem("Publisher", form)
}

// createMockTab creates the simulated station configuration tab.
func createMockTab(state *appState) *container.TabItem {
	waterStartEntry := widget.NewEntry()
	waterStartEntry.SetText(strconv.Itoa(int(state.cfg.Mock.WaterStart)))

	drainEntry := widget.NewEntry()
	drainEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.WaterDrain))

	refillEntry := widget.NewEntry()
	refillEntry.SetText(strconv.Itoa(int(state.cfg.Mock.RefillBelow)))

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.NoiseLevel))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	dayLengthEntry := widget.NewEntry()
	dayLengthEntry.SetText(state.cfg.Mock.DayLength.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Water Start (raw)", Widget: waterStartEntry},
			{Text: "Drain per Step (raw)", Widget: drainEntry},
			{Text: "Refill Below (raw)", Widget: refillEntry},
			{Text: "Noise Level (raw)", Widget: noiseLevelEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Day Length", Widget: dayLengthEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseUint(waterStartEntry.Text, 10, 16); err == nil {
				state.cfg.Mock.WaterStart = uint16(v)
			}
			if v, err := strconv.ParseFloat(drainEntry.Text, 64); err == nil {
				state.cfg.Mock.WaterDrain = v
			}
			if v, err := strconv.ParseUint(refillEntry.Text, 10, 16); err == nil {
				state.cfg.Mock.RefillBelow = uint16(v)
			}
			if v, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = v
			}
			if d, err := time.ParseDuration(sampleRateEntry.Text); err == nil && d > 0 {
				state.cfg.Mock.SampleRate = d
			}
			if d, err := time.ParseDuration(dayLengthEntry.Text); err == nil {
				state.cfg.Mock.DayLength = d
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Mock", form)
}
