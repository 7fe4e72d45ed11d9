package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"image-super-resolution/internal/persist"
	"image-super-resolution/internal/tensor"
)

var (
	ErrNoInput  = errors.New("no input image selected")
	ErrNoOutput = errors.New("no upscaled image to save")
)

// Decoder reads an image file.
type Decoder interface {
	LoadImage(path string) (*tensor.Image, error)
}

// Upscaler runs super-resolution on an image.
type Upscaler interface {
	Upscale(ctx context.Context, img *tensor.Image) (*tensor.Image, error)
}

// Saver persists an upscaled image to an opened file and the database. It
// closes w.
type Saver interface {
	Save(ctx context.Context, img *tensor.Image, userID int64, path string, w io.WriteCloser) (*persist.SaveResult, error)
}

// Session is the per-screen state. Output survives a new input selection so
// the last preview can still be saved.
type Session struct {
	InputPath string
	Input     *tensor.Image
	Output    *tensor.Image
	UserID    int64
	State     State
}

// ControllerConfig wires a Controller. OnBack and OnLogout are required.
type ControllerConfig struct {
	Decoder  Decoder
	Upscaler Upscaler
	Saver    Saver
	UserID   int64
	OnBack   func()
	OnLogout func()
	Logger   logrus.FieldLogger
}

// Controller applies user actions to a Session. Its methods block; callers
// on a UI goroutine should run them elsewhere.
type Controller struct {
	mu      sync.Mutex
	session Session

	decoder  Decoder
	upscaler Upscaler
	saver    Saver
	onBack   func()
	onLogout func()
	logger   logrus.FieldLogger
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	switch {
	case cfg.Decoder == nil:
		return nil, fmt.Errorf("decoder is required")
	case cfg.Upscaler == nil:
		return nil, fmt.Errorf("upscaler is required")
	case cfg.Saver == nil:
		return nil, fmt.Errorf("saver is required")
	case cfg.OnBack == nil:
		return nil, fmt.Errorf("back handler is required")
	case cfg.OnLogout == nil:
		return nil, fmt.Errorf("logout handler is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Controller{
		session: Session{
			UserID: cfg.UserID,
			State:  NoInputSelected,
		},
		decoder:  cfg.Decoder,
		upscaler: cfg.Upscaler,
		saver:    cfg.Saver,
		onBack:   cfg.OnBack,
		onLogout: cfg.OnLogout,
		logger:   logger.WithField("user_id", cfg.UserID),
	}, nil
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

func (c *Controller) CanPreview() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Input != nil
}

func (c *Controller) CanSave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Output != nil
}

// SelectInput decodes path and makes it the current input. A file that
// cannot be decoded leaves the session untouched.
func (c *Controller) SelectInput(path string) (*tensor.Image, error) {
	img, err := c.decoder.LoadImage(path)
	if err != nil {
		c.logger.WithError(err).WithField("filepath", path).Warn("Input selection rejected")
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Next(c.session.State, EventSelect)
	if err != nil {
		return nil, err
	}
	c.session.InputPath = path
	c.session.Input = img
	c.session.State = next

	c.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    img.Cols,
		"height":   img.Rows,
		"state":    next,
	}).Info("Input image selected")
	return img, nil
}

// Preview upscales the current input. On failure the previous output and
// state are kept.
func (c *Controller) Preview(ctx context.Context) (*tensor.Image, error) {
	c.mu.Lock()
	input := c.session.Input
	path := c.session.InputPath
	c.mu.Unlock()

	if input == nil {
		return nil, ErrNoInput
	}

	output, err := c.upscaler.Upscale(ctx, input)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A new selection made while upscaling wins over this result.
	if c.session.InputPath != path || c.session.Input != input {
		if err == nil {
			err = fmt.Errorf("input changed during preview")
		}
		return nil, err
	}

	if err != nil {
		c.session.State, _ = Next(c.session.State, EventPreviewFailed)
		c.logger.WithError(err).Error("Preview failed")
		return nil, fmt.Errorf("super-resolution failed: %w", err)
	}

	next, terr := Next(c.session.State, EventPreviewOK)
	if terr != nil {
		return nil, terr
	}
	c.session.Output = output
	c.session.State = next

	c.logger.WithFields(logrus.Fields{
		"width":  output.Cols,
		"height": output.Rows,
	}).Info("Preview ready")
	return output, nil
}

// Save writes the current output to w, the file opened at path, and to the
// database. w is closed in every case.
func (c *Controller) Save(ctx context.Context, path string, w io.WriteCloser) (*persist.SaveResult, error) {
	c.mu.Lock()
	output := c.session.Output
	userID := c.session.UserID
	c.mu.Unlock()

	if output == nil {
		_ = w.Close()
		return nil, ErrNoOutput
	}

	res, err := c.saver.Save(ctx, output, userID, path, w)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session.State, _ = Next(c.session.State, EventSave)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"filepath": res.Path,
		"image_id": res.ImageID,
	}).Info("Image saved")
	return res, nil
}

// Back leaves the screen without changing the session.
func (c *Controller) Back() {
	c.logger.Debug("Back to menu")
	c.onBack()
}

// Logout drops the session and hands control to the logout handler.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.session = Session{State: NoInputSelected}
	c.mu.Unlock()

	c.logger.Info("User logged out")
	c.onLogout()
}
