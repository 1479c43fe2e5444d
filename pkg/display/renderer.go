package display

import (
	"image/color"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/gobonsai/pkg/history"
)

var (
	textColor    = color.RGBA{R: 170, G: 255, B: 170, A: 255}
	warningColor = color.RGBA{R: 255, G: 90, B: 60, A: 255}
	gridColor    = color.RGBA{R: 40, G: 60, B: 40, A: 255}
	labelColor   = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	waterColor   = color.RGBA{R: 100, G: 200, B: 255, A: 255}
)

// panelRenderer renders the panel widget.
type panelRenderer struct {
	panel *Panel

	background *canvas.Rectangle

	objects []fyne.CanvasObject
}

// MinSize returns the minimum size of the widget.
func (r *panelRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 280)
}

// Layout arranges the widget components.
func (r *panelRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
}

// Refresh rebuilds the canvas objects from the current state.
func (r *panelRenderer) Refresh() {
	r.panel.mu.RLock()
	reports := r.panel.reports
	info := r.panel.info
	mode := r.panel.mode
	samples := r.panel.displayHistory
	r.panel.mu.RUnlock()

	r.objects = []fyne.CanvasObject{r.background}

	size := r.panel.Size()
	if size.Width == 0 || size.Height == 0 || mode == ModeClear {
		return
	}

	const (
		margin     = float32(12)
		lineHeight = float32(22)
	)

	y := margin
	for _, line := range Lines(mode, reports, info) {
		c := textColor
		if strings.HasSuffix(line, lowSuffix) {
			c = warningColor
		}
		text := canvas.NewText(line, c)
		text.TextSize = 16
		text.TextStyle = fyne.TextStyle{Monospace: true}
		text.Move(fyne.NewPos(margin, y))
		r.objects = append(r.objects, text)
		y += lineHeight
	}

	if mode != ModeDefault {
		return
	}

	// History plot below the text
	const (
		marginLeft   = float32(44)
		marginBottom = float32(24)
	)
	plotX := marginLeft
	plotY := y + margin
	plotWidth := size.Width - marginLeft - margin
	plotHeight := size.Height - plotY - marginBottom
	if plotWidth > 0 && plotHeight > 20 {
		r.drawGrid(plotX, plotY, plotWidth, plotHeight, samples)
		r.drawHistory(plotX, plotY, plotWidth, plotHeight, samples)
	}
}

// drawGrid draws percentage lines and the time span of the history.
func (r *panelRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, samples []history.Sample) {
	const numHLines = 4
	for i := 0; i < numHLines+1; i++ {
		y := plotY + float32(i)*plotHeight/numHLines
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		text := canvas.NewText(strconv.Itoa(100-i*100/numHLines)+"%", labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-30, y-6))
		r.objects = append(r.objects, text)
	}

	if len(samples) < 2 {
		return
	}
	span := samples[len(samples)-1].Timestamp - samples[0].Timestamp
	text := canvas.NewText("-"+span.Truncate(time.Second).String(), labelColor)
	text.TextSize = 10
	text.Move(fyne.NewPos(plotX, plotY+plotHeight+4))
	r.objects = append(r.objects, text)
}

// drawHistory draws the water level curve, oldest sample on the left.
func (r *panelRenderer) drawHistory(plotX, plotY, plotWidth, plotHeight float32, samples []history.Sample) {
	if len(samples) < 2 {
		return
	}

	t0 := samples[0].Timestamp
	span := samples[len(samples)-1].Timestamp - t0
	if span <= 0 {
		return
	}

	points := make([]fyne.Position, 0, len(samples))
	for _, s := range samples {
		x := plotX + float32(float64(s.Timestamp-t0)/float64(span))*plotWidth
		y := plotY + plotHeight - clampUnit(s.Value/100)*plotHeight
		points = append(points, fyne.NewPos(x, y))
	}

	for i := 0; i < len(points)-1; i++ {
		line := canvas.NewLine(waterColor)
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
	}
}

// Objects returns all canvas objects for rendering.
func (r *panelRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *panelRenderer) Destroy() {}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
