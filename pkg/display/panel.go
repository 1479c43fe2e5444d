// Package display renders station reports on a Fyne panel that mimics the
// station's character LCD, with a water level history plot below it.
package display

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gobonsai/pkg/history"
	"github.com/itohio/gobonsai/pkg/station"
)

var _ station.Display = (*Panel)(nil)

// Panel is a custom Fyne widget showing station reports.
type Panel struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu      sync.RWMutex
	reports []station.Report
	info    Info
	mode    Mode

	// Display buffer (reused for downsampling)
	displayHistory []history.Sample

	maxDisplayPoints int
}

// New creates a new Panel.
func New() *Panel {
	p := &Panel{
		displayHistory:   make([]history.Sample, 0, 240),
		maxDisplayPoints: 240,
	}
	p.ExtendBaseWidget(p)
	p.Refresh()
	return p
}

// Show implements station.Display. It may be called from any goroutine.
func (p *Panel) Show(reports []station.Report) {
	fyne.Do(func() {
		p.UpdateReports(reports)
	})
}

// UpdateReports replaces the displayed reports. Must run on the Fyne thread.
func (p *Panel) UpdateReports(reports []station.Report) {
	p.mu.Lock()
	p.reports = reports
	p.displayHistory = history.Downsample(p.displayHistory, waterHistory(reports), p.maxDisplayPoints)
	p.mu.Unlock()

	p.Refresh()
}

// SetInfo updates the clock and link information.
func (p *Panel) SetInfo(info Info) {
	p.mu.Lock()
	p.info = info
	p.mu.Unlock()

	p.Refresh()
}

// Mode returns the current mode.
func (p *Panel) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// NextMode switches to the following mode and returns it.
func (p *Panel) NextMode() Mode {
	p.mu.Lock()
	p.mode = p.mode.Next()
	m := p.mode
	p.mu.Unlock()

	p.Refresh()
	return m
}

// Tapped cycles modes like the station's mode button.
func (p *Panel) Tapped(*fyne.PointEvent) {
	p.NextMode()
}

// CreateRenderer creates the widget renderer.
func (p *Panel) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 32, B: 20, A: 255})
	return &panelRenderer{
		panel:      p,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}
