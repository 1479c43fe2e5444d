package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/itohio/gobonsai/pkg/history"
	"github.com/itohio/gobonsai/pkg/sample"
	"github.com/itohio/gobonsai/pkg/station"
)

// Mode selects what the panel shows.
type Mode uint8

const (
	ModeDefault  Mode = iota // Current readings
	ModeAverages             // Temperature and humidity statistics
	ModeClock                // Station clock and wall time
	ModeNetwork              // Link and publisher status
	ModeClear                // Nothing
	modeCount
)

var modeNames = [...]string{"default", "averages", "clock", "network", "clear"}

func (m Mode) String() string {
	if m < modeCount {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Next returns the mode following m, wrapping around after ModeClear.
func (m Mode) Next() Mode {
	return (m + 1) % modeCount
}

const lowSuffix = " LOW"

// Info is the non-sensor content of the panel.
type Info struct {
	Uptime    time.Duration // Station clock reading
	Time      time.Time
	Link      string // Serial port or "mock"
	Connected bool
	Publisher string // Publisher status, empty when disabled
}

// Lines renders reports as text lines for mode.
func Lines(mode Mode, reports []station.Report, info Info) []string {
	switch mode {
	case ModeDefault:
		lines := make([]string, 0, len(reports))
		for _, r := range reports {
			lines = append(lines, current(r))
		}
		return lines

	case ModeAverages:
		var lines []string
		for _, r := range reports {
			if r.Kind == sample.Water {
				continue
			}
			if r.Summary.Empty() {
				lines = append(lines, fmt.Sprintf("%s avg --", label(r)))
				continue
			}
			lines = append(lines,
				fmt.Sprintf("%s avg %s", label(r), value(float32(r.Summary.Mean), r.Unit)),
				fmt.Sprintf("  min %s max %s", value(r.Summary.Min, r.Unit), value(r.Summary.Max, r.Unit)),
			)
		}
		return lines

	case ModeClock:
		return []string{
			"Up " + formatUptime(info.Uptime),
			info.Time.Format("2006-01-02"),
			info.Time.Format("15:04:05"),
		}

	case ModeNetwork:
		link := "disconnected"
		if info.Connected {
			link = "connected"
		}
		lines := []string{
			fmt.Sprintf("Link %s", info.Link),
			link,
		}
		if info.Publisher != "" {
			lines = append(lines, "Pub "+info.Publisher)
		}
		return lines
	}

	return nil
}

func current(r station.Report) string {
	if r.Summary.Empty() {
		return label(r) + " --"
	}
	if r.Kind == sample.Water {
		s := fmt.Sprintf("%s %d%%", label(r), r.Percentage)
		if r.Warning {
			s += lowSuffix
		}
		return s
	}
	return fmt.Sprintf("%s %s", label(r), value(r.Summary.Latest, r.Unit))
}

func label(r station.Report) string {
	switch r.Kind {
	case sample.Water:
		return "Water"
	case sample.Temperature:
		return "Temp"
	case sample.Humidity:
		return "Hum"
	}
	if r.Name == "" {
		return "?"
	}
	return strings.ToUpper(r.Name[:1]) + r.Name[1:]
}

func value(v float32, unit string) string {
	return fmt.Sprintf("%.1f%s", v, unit)
}

// formatUptime renders d as days, hours, minutes and seconds.
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// waterHistory returns the water sensor history, or nil.
func waterHistory(reports []station.Report) []history.Sample {
	for _, r := range reports {
		if r.Kind == sample.Water {
			return r.History
		}
	}
	return nil
}
