package gui

import (
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// PreviewWindow is the secondary window that shows an upscaled image scaled
// down for display, with its consistency metrics.
type PreviewWindow struct {
	app    fyne.App
	window fyne.Window

	image     *canvas.Image
	sizeLabel *widget.Label
	metrics   *MetricsPanel
	shown     bool
}

func NewPreviewWindow(app fyne.App) *PreviewWindow {
	return &PreviewWindow{app: app}
}

func (pw *PreviewWindow) ensureWindow() {
	if pw.window != nil {
		return
	}
	pw.window = pw.app.NewWindow("Output Preview")
	pw.image = canvas.NewImageFromImage(nil)
	pw.image.FillMode = canvas.ImageFillContain
	pw.sizeLabel = widget.NewLabel("")
	pw.metrics = NewMetricsPanel()

	pw.window.SetContent(container.NewBorder(
		pw.sizeLabel,
		pw.metrics.GetContainer(),
		nil, nil,
		pw.image,
	))
	pw.window.SetCloseIntercept(pw.Hide)
}

// Show displays img, which is already fitted to the preview bounds. width and
// height are the full output dimensions.
func (pw *PreviewWindow) Show(img image.Image, width, height int, lines []string) {
	pw.ensureWindow()

	b := img.Bounds()
	pw.image.Image = img
	pw.image.SetMinSize(fyne.NewSize(float32(b.Dx()), float32(b.Dy())))
	pw.image.Refresh()
	pw.sizeLabel.SetText(fmt.Sprintf("Output %dx%d (shown at %dx%d)", width, height, b.Dx(), b.Dy()))
	pw.metrics.UpdateLines(lines)

	pw.window.Show()
	pw.shown = true
}

func (pw *PreviewWindow) Visible() bool {
	return pw.shown
}

func (pw *PreviewWindow) Hide() {
	if pw.window != nil {
		pw.window.Hide()
	}
	pw.shown = false
}

func (pw *PreviewWindow) Close() {
	if pw.window != nil {
		pw.window.Close()
		pw.window = nil
	}
	pw.shown = false
}
