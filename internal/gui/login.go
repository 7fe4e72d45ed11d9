package gui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

const loginTimeout = 15 * time.Second

// LoginScreen asks for a username and resolves it to a user id.
type LoginScreen struct {
	window  fyne.Window
	auth    Authenticator
	onLogin func(userID int64)
	logger  logrus.FieldLogger
	run     runner

	container *fyne.Container
	username  *widget.Entry
	loginBtn  *widget.Button
	status    *widget.Label
}

func NewLoginScreen(window fyne.Window, auth Authenticator, onLogin func(int64), logger logrus.FieldLogger) *LoginScreen {
	ls := &LoginScreen{
		window:  window,
		auth:    auth,
		onLogin: onLogin,
		logger:  logger,
		run:     backgroundRunner,
	}

	ls.username = widget.NewEntry()
	ls.username.SetPlaceHolder("Username")
	ls.username.OnSubmitted = func(string) { ls.submit() }

	ls.loginBtn = widget.NewButton("Login", ls.submit)
	ls.loginBtn.Importance = widget.HighImportance
	ls.status = widget.NewLabel("")

	form := container.NewVBox(
		widget.NewLabelWithStyle("Sign in", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		ls.username,
		ls.loginBtn,
		ls.status,
	)
	ls.container = container.NewCenter(container.NewGridWrap(fyne.NewSize(320, 200), form))
	return ls
}

func (ls *LoginScreen) GetContainer() fyne.CanvasObject {
	return ls.container
}

func (ls *LoginScreen) Focus() {
	if c := ls.window.Canvas(); c != nil {
		c.Focus(ls.username)
	}
}

func (ls *LoginScreen) submit() {
	name := strings.TrimSpace(ls.username.Text)
	if name == "" {
		dialog.ShowError(fmt.Errorf("enter a username"), ls.window)
		return
	}
	if ls.auth == nil {
		dialog.ShowError(fmt.Errorf("login is not available"), ls.window)
		return
	}

	ls.loginBtn.Disable()
	ls.status.SetText("Signing in...")

	var (
		id  int64
		err error
	)
	ls.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		id, err = ls.auth.Authenticate(ctx, name)
	}, func() {
		ls.loginBtn.Enable()
		ls.status.SetText("")
		if err != nil {
			ls.logger.WithError(err).WithField("username", name).Error("Login failed")
			dialog.ShowError(fmt.Errorf("login failed: %w", err), ls.window)
			return
		}
		ls.onLogin(id)
	})
}
