// Action bar of the super-resolution screen
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

type Toolbar struct {
	container *fyne.Container

	selectBtn  *widget.Button
	previewBtn *widget.Button
	saveBtn    *widget.Button
	backBtn    *widget.Button
	logoutBtn  *widget.Button

	canPreview bool
	canSave    bool
	busy       bool

	onSelect  func()
	onPreview func()
	onSave    func()
	onBack    func()
	onLogout  func()
}

func NewToolbar() *Toolbar {
	tb := &Toolbar{}
	tb.initializeUI()
	return tb
}

func (tb *Toolbar) initializeUI() {
	tb.selectBtn = widget.NewButtonWithIcon("Select Image", theme.FolderOpenIcon(), func() {
		if tb.onSelect != nil {
			tb.onSelect()
		}
	})

	tb.previewBtn = widget.NewButtonWithIcon("Preview", theme.VisibilityIcon(), func() {
		if tb.onPreview != nil {
			tb.onPreview()
		}
	})
	tb.previewBtn.Importance = widget.HighImportance

	tb.saveBtn = widget.NewButtonWithIcon("Save Image", theme.DocumentSaveIcon(), func() {
		if tb.onSave != nil {
			tb.onSave()
		}
	})
	tb.saveBtn.Importance = widget.HighImportance

	tb.backBtn = widget.NewButtonWithIcon("Back", theme.NavigateBackIcon(), func() {
		if tb.onBack != nil {
			tb.onBack()
		}
	})

	tb.logoutBtn = widget.NewButtonWithIcon("Logout", theme.LogoutIcon(), func() {
		if tb.onLogout != nil {
			tb.onLogout()
		}
	})

	tb.container = container.NewHBox(
		tb.selectBtn,
		tb.previewBtn,
		tb.saveBtn,
		layout.NewSpacer(),
		tb.backBtn,
		tb.logoutBtn,
	)
	tb.apply()
}

// SetState enables Preview and Save from the session state.
func (tb *Toolbar) SetState(canPreview, canSave bool) {
	tb.canPreview = canPreview
	tb.canSave = canSave
	tb.apply()
}

// SetBusy disables every action while a task runs.
func (tb *Toolbar) SetBusy(busy bool) {
	tb.busy = busy
	tb.apply()
}

func (tb *Toolbar) apply() {
	setEnabled(tb.selectBtn, !tb.busy)
	setEnabled(tb.previewBtn, !tb.busy && tb.canPreview)
	setEnabled(tb.saveBtn, !tb.busy && tb.canSave)
	setEnabled(tb.backBtn, !tb.busy)
	setEnabled(tb.logoutBtn, !tb.busy)
}

func setEnabled(b *widget.Button, enabled bool) {
	if enabled {
		b.Enable()
	} else {
		b.Disable()
	}
}

func (tb *Toolbar) GetContainer() fyne.CanvasObject {
	return tb.container
}

func (tb *Toolbar) SetCallbacks(
	onSelect func(),
	onPreview func(),
	onSave func(),
	onBack func(),
	onLogout func(),
) {
	tb.onSelect = onSelect
	tb.onPreview = onPreview
	tb.onSave = onSave
	tb.onBack = onBack
	tb.onLogout = onLogout
}
