// Main application window and screen navigation
package gui

import (
	"context"
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"github.com/sirupsen/logrus"

	"image-super-resolution/internal/metrics"
	"image-super-resolution/internal/session"
	"image-super-resolution/internal/tensor"
)

// Authenticator resolves a username to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, username string) (int64, error)
}

// Library counts the images a user has saved.
type Library interface {
	CountImages(ctx context.Context, userID int64) (int, error)
}

// Renderer scales an image for on-screen display.
type Renderer interface {
	Render(img *tensor.Image) (image.Image, error)
}

// Services are the non-UI components the screens drive.
type Services struct {
	Decoder   session.Decoder
	Upscaler  session.Upscaler
	Saver     session.Saver
	Auth      Authenticator
	Library   Library
	Renderer  Renderer
	Evaluator *metrics.Evaluator
}

// Options tune the application shell.
type Options struct {
	Width  float32
	Height float32
	// UserID skips the login screen when positive.
	UserID int64
	// OnShutdown runs once when the main window closes.
	OnShutdown func()
}

// runner executes work off the UI goroutine and then apply on it.
type runner func(work func(), apply func())

func backgroundRunner(work func(), apply func()) {
	go func() {
		work()
		fyne.Do(apply)
	}()
}

// Application owns the main window and swaps screens inside it.
type Application struct {
	app      fyne.App
	window   fyne.Window
	logger   *logrus.Logger
	services Services
	opts     Options
	run      runner

	userID      int64
	menu        *MainMenu
	login       *LoginScreen
	superRes    *SuperResolutionScreen
	previewWin  *PreviewWindow
	menuHandler *MenuHandler
}

func NewApplication(app fyne.App, services Services, opts Options, logger *logrus.Logger) *Application {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1000, 700
	}

	window := app.NewWindow("Image Super-Resolution")
	window.Resize(fyne.NewSize(opts.Width, opts.Height))
	window.CenterOnScreen()

	a := &Application{
		app:      app,
		window:   window,
		logger:   logger,
		services: services,
		opts:     opts,
		run:      backgroundRunner,
	}

	a.previewWin = NewPreviewWindow(app)
	a.menuHandler = NewMenuHandler(window, logger)
	window.SetMainMenu(a.menuHandler.GetMainMenu())

	if opts.UserID > 0 {
		a.ShowMenu(opts.UserID)
	} else {
		a.ShowLogin()
	}
	return a
}

// ShowLogin drops any user session and shows the login screen.
func (a *Application) ShowLogin() {
	a.userID = 0
	a.superRes = nil
	a.previewWin.Hide()
	a.menuHandler.SetCallbacks(nil, nil)

	a.login = NewLoginScreen(a.window, a.services.Auth, a.ShowMenu, a.logger)
	a.login.run = a.run

	a.window.SetTitle("Login")
	a.window.SetContent(a.login.GetContainer())
	a.login.Focus()
}

// ShowMenu shows the launcher for an authenticated user.
func (a *Application) ShowMenu(userID int64) {
	a.userID = userID
	a.superRes = nil
	a.previewWin.Hide()
	a.menuHandler.SetCallbacks(nil, nil)
	a.menu = NewMainMenu(a.ShowSuperResolution, a.ShowLogin)

	a.window.SetTitle("Image Super-Resolution")
	a.window.SetContent(a.menu.GetContainer())
	a.logger.WithField("user_id", userID).Debug("Main menu shown")

	a.refreshLibrary(userID, a.menu)
}

// refreshLibrary shows how many images the user has saved so far.
func (a *Application) refreshLibrary(userID int64, menu *MainMenu) {
	if a.services.Library == nil {
		return
	}

	var (
		count int
		err   error
	)
	a.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		count, err = a.services.Library.CountImages(ctx, userID)
	}, func() {
		if err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Warn("Failed to count saved images")
			menu.SetSavedCount(-1)
			return
		}
		menu.SetSavedCount(count)
	})
}

// ShowSuperResolution opens a fresh super-resolution screen.
func (a *Application) ShowSuperResolution() {
	screen, err := NewSuperResolutionScreen(ScreenConfig{
		Window:   a.window,
		Services: a.services,
		Preview:  a.previewWin,
		UserID:   a.userID,
		OnBack:   func() { a.ShowMenu(a.userID) },
		OnLogout: a.ShowLogin,
		Logger:   a.logger,
		runAsync: a.run,
	})
	if err != nil {
		a.logger.WithError(err).Error("Failed to open super-resolution screen")
		dialog.ShowError(err, a.window)
		return
	}
	a.superRes = screen
	a.menuHandler.SetCallbacks(screen.openInputDialog, screen.openSaveDialog)

	a.window.SetTitle("Super-Resolution")
	a.window.Resize(fyne.NewSize(a.opts.Width, a.opts.Height))
	a.window.SetContent(screen.GetContainer())
}

func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.previewWin.Close()
	if a.opts.OnShutdown != nil {
		a.opts.OnShutdown()
	}
}
