package gui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"image-super-resolution/internal/core"
	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/persist"
	"image-super-resolution/internal/session"
	"image-super-resolution/internal/tensor"
)

const defaultSaveName = "upscaled.png"

// ScreenConfig wires a SuperResolutionScreen.
type ScreenConfig struct {
	Window   fyne.Window
	Services Services
	Preview  *PreviewWindow
	UserID   int64
	OnBack   func()
	OnLogout func()
	Logger   logrus.FieldLogger

	runAsync runner
}

// SuperResolutionScreen lets a user pick an image, preview its upscaled
// version and save it.
type SuperResolutionScreen struct {
	window     fyne.Window
	ctrl       *session.Controller
	services   Services
	previewWin *PreviewWindow
	logger     logrus.FieldLogger
	run        runner

	container fyne.CanvasObject
	toolbar   *Toolbar
	status    *StatusBar
	inputView *canvas.Image
	inputInfo *widget.Label
}

func NewSuperResolutionScreen(cfg ScreenConfig) (*SuperResolutionScreen, error) {
	ctrl, err := session.NewController(session.ControllerConfig{
		Decoder:  cfg.Services.Decoder,
		Upscaler: cfg.Services.Upscaler,
		Saver:    cfg.Services.Saver,
		UserID:   cfg.UserID,
		OnBack:   cfg.OnBack,
		OnLogout: cfg.OnLogout,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &SuperResolutionScreen{
		window:     cfg.Window,
		ctrl:       ctrl,
		services:   cfg.Services,
		previewWin: cfg.Preview,
		logger:     logger,
		run:        cfg.runAsync,
	}
	if s.run == nil {
		s.run = backgroundRunner
	}

	s.initializeUI()
	s.refreshState()
	return s, nil
}

func (s *SuperResolutionScreen) initializeUI() {
	s.toolbar = NewToolbar()
	s.toolbar.SetCallbacks(
		s.openInputDialog,
		s.runPreview,
		s.openSaveDialog,
		s.ctrl.Back,
		s.logout,
	)

	s.status = NewStatusBar("Select an image to upscale")
	s.inputView = canvas.NewImageFromImage(nil)
	s.inputView.FillMode = canvas.ImageFillContain
	s.inputInfo = widget.NewLabel("No image selected")

	s.container = container.NewBorder(
		container.NewVBox(s.toolbar.GetContainer(), widget.NewSeparator()),
		container.NewVBox(widget.NewSeparator(), s.status.GetContainer()),
		nil, nil,
		widget.NewCard("Input", "", container.NewBorder(s.inputInfo, nil, nil, nil, s.inputView)),
	)
}

func (s *SuperResolutionScreen) GetContainer() fyne.CanvasObject {
	return s.container
}

func (s *SuperResolutionScreen) refreshState() {
	s.toolbar.SetState(s.ctrl.CanPreview(), s.ctrl.CanSave())
}

func (s *SuperResolutionScreen) openInputDialog() {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			s.showError("File Dialog Error", err)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		_ = reader.Close()

		s.selectInput(path)
	}, s.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(imgio.InputExtensions))
	fileDialog.Show()
}

func (s *SuperResolutionScreen) selectInput(path string) {
	s.toolbar.SetBusy(true)
	s.status.SetMessage(fmt.Sprintf("Loading %s...", filepath.Base(path)))

	var (
		img      *tensor.Image
		thumb    image.Image
		err      error
		thumbErr error
	)
	s.run(func() {
		img, err = s.ctrl.SelectInput(path)
		if err == nil && s.services.Renderer != nil {
			thumb, thumbErr = s.services.Renderer.Render(img)
		}
	}, func() {
		s.toolbar.SetBusy(false)
		s.refreshState()
		if err != nil {
			s.status.SetMessage("Image could not be loaded")
			s.showError("Failed to Load Image", err)
			return
		}
		if thumbErr != nil {
			s.logger.WithError(thumbErr).Warn("Failed to render input thumbnail")
		} else if thumb != nil {
			s.inputView.Image = thumb
			s.inputView.Refresh()
		}
		s.inputInfo.SetText(fmt.Sprintf("%s (%dx%d)", filepath.Base(path), img.Cols, img.Rows))
		s.status.SetMessage(fmt.Sprintf("Selected: %s", path))
	})
}

func (s *SuperResolutionScreen) runPreview() {
	if !s.ctrl.CanPreview() {
		s.showError("No Image", session.ErrNoInput)
		return
	}

	s.toolbar.SetBusy(true)
	s.status.SetMessage("Upscaling...")

	var (
		out       *tensor.Image
		rendered  image.Image
		lines     []string
		err       error
		renderErr error
	)
	s.run(func() {
		out, err = s.ctrl.Preview(context.Background())
		if err != nil {
			return
		}
		lines = append(s.consistencyLines(out), s.timingLines()...)
		if s.services.Renderer != nil {
			rendered, renderErr = s.services.Renderer.Render(out)
		}
	}, func() {
		s.toolbar.SetBusy(false)
		s.refreshState()
		if err != nil {
			s.status.SetMessage("Preview failed")
			s.showError("Preview Failed", err)
			return
		}
		// The upscaled image is kept and can be saved even if it cannot be shown.
		if renderErr != nil {
			s.logger.WithError(renderErr).Warn("Failed to render preview")
			s.status.SetMessage(fmt.Sprintf("Upscaled to %dx%d, preview could not be displayed", out.Cols, out.Rows))
			return
		}
		if rendered != nil && s.previewWin != nil {
			s.previewWin.Show(rendered, out.Cols, out.Rows, lines)
		}
		s.status.SetMessage(fmt.Sprintf("Preview ready: %dx%d", out.Cols, out.Rows))
	})
}

// consistencyLines returns display lines for the metrics report. Metric
// failures are logged and leave the list empty.
func (s *SuperResolutionScreen) consistencyLines(out *tensor.Image) []string {
	if s.services.Evaluator == nil {
		return nil
	}
	input := s.ctrl.Snapshot().Input
	if input == nil {
		return nil
	}
	report, err := s.services.Evaluator.Consistency(input, out)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to compute preview metrics")
		return nil
	}
	return report.Lines(s.services.Evaluator)
}

// timedUpscaler is an upscaler that records its stage timings.
type timedUpscaler interface {
	Stats() *core.Recorder
}

// timingLines describes the latest forward pass, if the upscaler records one.
func (s *SuperResolutionScreen) timingLines() []string {
	tu, ok := s.services.Upscaler.(timedUpscaler)
	if !ok {
		return nil
	}
	rec := tu.Stats()
	ops := rec.Operations()
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Stage != core.StageForward || !ops[i].Success {
			continue
		}
		st := rec.Stage(core.StageForward)
		return []string{fmt.Sprintf("Forward pass: %d ms (avg %d ms over %d runs)",
			ops[i].Duration.Milliseconds(), st.Average().Milliseconds(), st.Count)}
	}
	return nil
}

func (s *SuperResolutionScreen) openSaveDialog() {
	if !s.ctrl.CanSave() {
		s.showError("No Image", session.ErrNoOutput)
		return
	}

	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			s.showError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return
		}
		// The dialog has already created the file; the image is written
		// through this writer so nothing else on disk is touched.
		s.saveOutput(writer.URI().Path(), writer)
	}, s.window)

	fileDialog.SetFileName(defaultSaveName)
	fileDialog.SetFilter(storage.NewExtensionFileFilter(imgio.OutputExtensions))
	fileDialog.Show()
}

// saveOutput writes the current output to w, which is open on path. w is
// closed once the save finishes.
func (s *SuperResolutionScreen) saveOutput(path string, w io.WriteCloser) {
	s.toolbar.SetBusy(true)
	s.status.SetMessage("Saving...")

	var (
		res *persist.SaveResult
		err error
	)
	s.run(func() {
		res, err = s.ctrl.Save(context.Background(), path, w)
	}, func() {
		s.toolbar.SetBusy(false)
		s.refreshState()
		if err != nil {
			var se *persist.SaveError
			if errors.As(err, &se) && se.FileWritten {
				s.status.SetMessage(fmt.Sprintf("Saved to %s, database save failed", se.Path))
			} else {
				s.status.SetMessage("Save failed")
			}
			s.showError("Save Failed", err)
			return
		}
		s.status.SetMessage(fmt.Sprintf("Saved: %s", res.Path))
		dialog.ShowInformation("Image Saved",
			fmt.Sprintf("Image saved to:\n%s\nand stored in the database.", res.Path), s.window)
	})
}

func (s *SuperResolutionScreen) logout() {
	if s.previewWin != nil {
		s.previewWin.Hide()
	}
	s.ctrl.Logout()
}

func (s *SuperResolutionScreen) showError(title string, err error) {
	s.logger.WithError(err).Error(title)
	dialog.ShowError(err, s.window)
}
