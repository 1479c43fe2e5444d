package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gobonsai/pkg/clock"
	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/display"
	"github.com/itohio/gobonsai/pkg/publish"
	"github.com/itohio/gobonsai/pkg/sensor"
	"github.com/itohio/gobonsai/pkg/station"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated station instead of serial port")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	// Station time continues from the previous session
	start := time.Now()
	stationClock := clock.New(clock.NewFileStore(cfg.Clock.StatePath), func() time.Duration {
		return time.Since(start)
	})
	if err := stationClock.Setup(clock.ResetDeepSleepAwake); err != nil {
		log.WithError(err).Warn("failed to restore station clock")
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.gobonsai")

	// Create main window
	window := application.NewWindow("Bonsai Station")
	window.Resize(fyne.NewSize(480, 560))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		clock:      stationClock,
		window:     window,
		useMock:    *mockFlag,
		throttle:   newThrottle(100 * time.Millisecond),
	}

	toolbar := createToolbar(state)

	state.panel = display.New()

	if err := buildStation(state); err != nil {
		log.Fatalf("Failed to create station: %v", err)
	}

	window.SetContent(container.NewBorder(toolbar, nil, nil, nil, state.panel))

	stopInfo := make(chan struct{})
	go refreshInfo(state, stopInfo)

	window.SetOnClosed(func() {
		close(stopInfo)
		closeChain(state.chain)
		state.chain = nil
		if err := stationClock.PrepareForSleep(); err != nil {
			log.WithError(err).Warn("failed to persist station clock")
		}
	})

	window.ShowAndRun()
}

// readingChain tracks the goroutines fed by one device connection.
type readingChain struct {
	device      sensor.Device
	cancel      context.CancelFunc
	processDone chan struct{} // Closed when the station stops consuming readings
	publishDone chan struct{} // Closed when the publish loop exits
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	clock      *clock.Clock
	device     sensor.Device
	station    *station.Station
	panel      *display.Panel
	window     fyne.Window
	connectBtn *widget.Button
	warningBtn *widget.Button
	useMock    bool
	chain      *readingChain // Current chain (nil if not connected)
	throttle   *throttle

	pubMu     sync.Mutex
	pubStatus string
}

// createToolbar creates the application toolbar with Connect, Settings, Mode
// and the warning indicator.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	modeBtn := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), func() {
		state.panel.NextMode()
	})

	// Mirrors the station warning LED; not clickable
	warningBtn := widget.NewButtonWithIcon("", theme.WarningIcon(), nil)
	warningBtn.Disable()
	state.warningBtn = warningBtn

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn, modeBtn), // left
		warningBtn, // right
		nil,        // center (spacer)
	)
}

// buildStation creates the station from the current configuration and wires
// it to the panel, the warning indicator and the publisher.
func buildStation(state *appState) error {
	opts := []station.Option{
		station.WithIndicator(&indicator{state: state}),
	}

	if state.cfg.Publisher.Enabled {
		pub, err := publish.New(state.cfg.Publisher, nil)
		if err != nil {
			return err
		}
		opts = append(opts, station.WithPublisher(pub))
		state.setPublisherStatus("idle")
	} else {
		state.setPublisherStatus("")
	}

	st, err := station.New(state.cfg, nil, state.clock, opts...)
	if err != nil {
		return err
	}

	// Throttle panel updates so a fast mock does not flood the UI
	st.OnUpdate(func(reports []station.Report) {
		if !state.throttle.Allow() {
			return
		}
		state.panel.Show(reports)
	})

	state.station = st
	return nil
}

// closeChain stops the publish loop, closes the device and waits for the
// station to drain its readings.
func closeChain(chain *readingChain) {
	if chain == nil {
		return
	}

	chain.cancel()

	if chain.device != nil {
		chain.device.Close()
	}

	if chain.processDone != nil {
		<-chain.processDone
	}
	if chain.publishDone != nil {
		<-chain.publishDone
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		closeChain(state.chain)
		state.chain = nil
		state.device = nil
		updateWarningButton(state.warningBtn, false)
		if state.useMock {
			log.Info("Disconnected from simulated station")
		} else {
			log.Info("Disconnected from serial port")
		}
		return
	}

	var device sensor.Device
	if state.useMock {
		device = sensor.NewMock(state.cfg)
		log.Info("Using simulated station")
	} else {
		device = sensor.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, sensor.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated station: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.device = device
	if !state.useMock {
		log.WithField("port", state.cfg.Serial.Port).Info("Connected to serial port")
	}

	startChain(state, device)
}

// startChain feeds device readings into the station and starts publishing.
func startChain(state *appState, device sensor.Device) {
	// Callbacks are disabled after the previous chain's channel closed
	state.station.ResetShutdown()

	ctx, cancel := context.WithCancel(context.Background())
	chain := &readingChain{
		device:      device,
		cancel:      cancel,
		processDone: make(chan struct{}),
		publishDone: make(chan struct{}),
	}

	st := state.station
	go func() {
		defer close(chain.processDone)
		st.ProcessReadings(device.Readings())
	}()

	go func() {
		defer close(chain.publishDone)
		publishLoop(ctx, state, st)
	}()

	state.chain = chain
}

// publishLoop publishes averages at the configured interval.
func publishLoop(ctx context.Context, state *appState, st *station.Station) {
	if !state.cfg.Publisher.Enabled || state.cfg.Station.PublishInterval <= 0 {
		return
	}

	ticker := time.NewTicker(state.cfg.Station.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.Publish(ctx); err != nil {
				log.WithError(err).Warn("publish failed")
				state.setPublisherStatus("error")
				continue
			}
			state.setPublisherStatus("ok " + time.Now().Format("15:04"))
		}
	}
}

func (s *appState) setPublisherStatus(status string) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.pubStatus = status
}

func (s *appState) publisherStatus() string {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	return s.pubStatus
}

// refreshInfo updates the clock and link information once a second.
func refreshInfo(state *appState, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	link := state.cfg.Serial.Port
	if state.useMock {
		link = "mock"
	}

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			info := display.Info{
				Uptime:    state.clock.Now(),
				Time:      now,
				Link:      link,
				Publisher: state.publisherStatus(),
			}
			fyne.Do(func() {
				info.Connected = state.device != nil && state.device.IsConnected()
				state.panel.SetInfo(info)
			})
		}
	}
}
