// Launcher screen and window menu
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

// MainMenu is the launcher shown after login.
type MainMenu struct {
	container *fyne.Container

	superResBtn *widget.Button
	logoutBtn   *widget.Button
	library     *widget.Label
}

func NewMainMenu(onSuperResolution, onLogout func()) *MainMenu {
	m := &MainMenu{}

	m.superResBtn = widget.NewButtonWithIcon("Super-Resolution", theme.MediaPhotoIcon(), onSuperResolution)
	m.superResBtn.Importance = widget.HighImportance
	m.logoutBtn = widget.NewButtonWithIcon("Logout", theme.LogoutIcon(), onLogout)

	m.library = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Italic: true})

	title := widget.NewLabelWithStyle("Image Super-Resolution", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	m.container = container.NewCenter(container.NewVBox(
		title,
		widget.NewSeparator(),
		m.superResBtn,
		m.logoutBtn,
		m.library,
	))
	return m
}

// SetSavedCount shows the user's saved image count; a negative count means
// it is unknown.
func (m *MainMenu) SetSavedCount(n int) {
	if n < 0 {
		m.library.SetText("Saved images: unavailable")
		return
	}
	m.library.SetText(fmt.Sprintf("Saved images: %d", n))
}

func (m *MainMenu) GetContainer() fyne.CanvasObject {
	return m.container
}

// MenuHandler builds the window menu. File actions are only live while the
// super-resolution screen is shown.
type MenuHandler struct {
	window fyne.Window
	logger logrus.FieldLogger

	onOpen func()
	onSave func()
}

func NewMenuHandler(window fyne.Window, logger logrus.FieldLogger) *MenuHandler {
	return &MenuHandler{
		window: window,
		logger: logger,
	}
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Select Image...", mh.open),
		fyne.NewMenuItem("Save Image...", mh.save),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)

	return fyne.NewMainMenu(fileMenu, helpMenu)
}

func (mh *MenuHandler) SetCallbacks(onOpen, onSave func()) {
	mh.onOpen = onOpen
	mh.onSave = onSave
}

func (mh *MenuHandler) open() {
	if mh.onOpen != nil {
		mh.onOpen()
	}
}

func (mh *MenuHandler) save() {
	if mh.onSave != nil {
		mh.onSave()
	}
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel("Image Super-Resolution"),
		widget.NewSeparator(),
		widget.NewLabel("4x upscaling with an RRDB ESRGAN network"),
		widget.NewLabel("Built with Go, Fyne and OpenCV"),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Show()
}
