package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/gobonsai/pkg/clock"
	"github.com/itohio/gobonsai/pkg/config"
	"github.com/itohio/gobonsai/pkg/publish"
	"github.com/itohio/gobonsai/pkg/sensor"
	"github.com/itohio/gobonsai/pkg/station"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	runMock        bool
	runPort        string
	runMetricsAddr string
	runReset       string
	runFor         time.Duration
	runOnce        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample, warn and publish until interrupted",
	Long: `Runs the station loop against the serial link or the simulator.

Station time is kept in the clock state file and continues across runs when
the reset reason is deep-sleep-awake. With --once (or station.sleep_after_cycle)
a single sample and publish cycle is made before the clock is persisted and
the command exits, which suits cron-style duty cycling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runPort != "" {
			cfg.Serial.Port = runPort
		}

		reason, err := clock.ParseResetReason(runReset)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if runFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runFor)
			defer cancel()
		}

		return runStation(ctx, cfg, reason, runOnce || cfg.Station.SleepAfterCycle)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runMock, "mock", false, "use the simulated station instead of the serial port")
	runCmd.Flags().StringVarP(&runPort, "port", "p", "", "serial port override")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9110")
	runCmd.Flags().StringVar(&runReset, "reset-reason", clock.ResetDeepSleepAwake.String(), "reset reason passed to the clock. power-on|deep-sleep-awake|...")
	runCmd.Flags().DurationVar(&runFor, "for", 0, "stop after this long (0 = until interrupted)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single sample and publish cycle, then sleep")
}

func openDevice(cfg *config.Config) (sensor.Device, error) {
	if runMock {
		return sensor.NewMock(cfg), nil
	}
	return sensor.New(cfg.Serial.Port, cfg.Serial.BaudRate, sensor.DefaultBufferSize), nil
}

func runStation(ctx context.Context, cfg *config.Config, reason clock.ResetReason, once bool) error {
	start := time.Now()
	clk := clock.New(clock.NewFileStore(cfg.Clock.StatePath), func() time.Duration {
		return time.Since(start)
	})
	if err := clk.Setup(reason); err != nil {
		return fmt.Errorf("clock setup: %w", err)
	}
	log.WithFields(log.Fields{
		"reason": reason,
		"offset": clk.Offset(),
	}).Info("station clock ready")

	defer func() {
		if err := clk.PrepareForSleep(); err != nil {
			log.WithError(err).Error("failed to persist station clock")
			return
		}
		log.WithField("offset", clk.Offset()).Info("station clock persisted")
	}()

	dev, err := openDevice(cfg)
	if err != nil {
		return err
	}
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer dev.Close()

	// Readings are polled through Read; drain the stream so it never fills
	go func() {
		for range dev.Readings() {
		}
	}()

	opts := []station.Option{station.WithIndicator(dev)}
	if cfg.Publisher.Enabled {
		pub, err := publish.New(cfg.Publisher, nil)
		if err != nil {
			return err
		}
		opts = append(opts, station.WithPublisher(pub))
	}

	st, err := station.New(cfg, dev, clk, opts...)
	if err != nil {
		return err
	}

	if runMetricsAddr != "" {
		serveMetrics(ctx, st, runMetricsAddr)
	}

	if once {
		if err := waitForReadings(ctx, dev, sensorChannels(cfg), cfg.Station.SampleInterval); err != nil {
			return err
		}
		return cycle(ctx, st)
	}

	log.Info("station running")
	return st.Run(ctx)
}

// sensorChannels lists the multiplexer channels of the enabled sensors.
func sensorChannels(cfg *config.Config) []uint8 {
	var channels []uint8
	for _, s := range []config.SensorConfig{cfg.Sensors.Water, cfg.Sensors.Temperature, cfg.Sensors.Humidity} {
		if s.Enabled {
			channels = append(channels, s.Channel)
		}
	}
	return channels
}

// waitForReadings polls src every interval until each channel has reported.
func waitForReadings(ctx context.Context, src sensor.Source, channels []uint8, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := append([]uint8(nil), channels...)
	for {
		remaining := pending[:0]
		for _, ch := range pending {
			_, err := src.Read(ch)
			switch {
			case err == nil:
			case errors.Is(err, sensor.ErrNoReading):
				remaining = append(remaining, ch)
			default:
				return fmt.Errorf("channel %d: %w", ch, err)
			}
		}
		pending = remaining
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("no readings on channels %v: %w", pending, ctx.Err())
		case <-ticker.C:
		}
	}
}

// cycle samples every sensor once, then publishes.
func cycle(ctx context.Context, st *station.Station) error {
	if err := st.Sample(); err != nil {
		log.WithError(err).Warn("sample incomplete")
	}

	for _, r := range st.Reports() {
		log.WithFields(log.Fields{
			"sensor": r.Name,
			"value":  r.Summary.Latest,
			"unit":   r.Unit,
		}).Info("sampled")
	}

	return st.Publish(ctx)
}

func serveMetrics(ctx context.Context, st *station.Station, addr string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(station.NewCollector(st))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.Gatherers{reg, prometheus.DefaultGatherer}, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics listener failed")
		}
	}()

	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}
