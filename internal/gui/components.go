package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const noMetricsText = "Preview an image to see quality metrics"

// MetricsPanel displays quality metrics
type MetricsPanel struct {
	vbox  *fyne.Container
	lines []string
}

func NewMetricsPanel() *MetricsPanel {
	panel := &MetricsPanel{}
	panel.vbox = container.NewVBox()
	panel.Clear()
	return panel
}

func (mp *MetricsPanel) GetContainer() fyne.CanvasObject {
	return mp.vbox
}

// UpdateLines shows one preformatted metric per line.
func (mp *MetricsPanel) UpdateLines(lines []string) {
	mp.lines = lines

	content := container.NewVBox()
	for _, line := range lines {
		content.Add(widget.NewLabel(line))
	}
	if len(lines) == 0 {
		content.Add(widget.NewLabel("No metrics available"))
	}

	mp.vbox.RemoveAll()
	mp.vbox.Add(widget.NewCard("Quality Metrics", "", content))
}

func (mp *MetricsPanel) Clear() {
	mp.lines = nil
	mp.vbox.RemoveAll()
	mp.vbox.Add(widget.NewCard("Quality Metrics", "", widget.NewLabel(noMetricsText)))
}

// StatusBar shows the latest status message.
type StatusBar struct {
	label *widget.Label
}

func NewStatusBar(initial string) *StatusBar {
	return &StatusBar{label: widget.NewLabel(initial)}
}

func (sb *StatusBar) SetMessage(msg string) {
	sb.label.SetText(msg)
}

func (sb *StatusBar) Message() string {
	return sb.label.Text
}

func (sb *StatusBar) GetContainer() fyne.CanvasObject {
	return sb.label
}
