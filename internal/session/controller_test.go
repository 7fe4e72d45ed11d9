package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"image-super-resolution/internal/core"
	imgio "image-super-resolution/internal/io"
	"image-super-resolution/internal/persist"
	"image-super-resolution/internal/tensor"
)

type mapDecoder map[string]*tensor.Image

func (m mapDecoder) LoadImage(path string) (*tensor.Image, error) {
	img, ok := m[path]
	if !ok {
		return nil, imgio.ErrDecode
	}
	return img, nil
}

// nearestNet repeats every pixel s times in each direction.
type nearestNet struct{ s int }

func (n nearestNet) Scale() int { return n.s }

func (n nearestNet) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	_, c, h, w, err := in.Dims4()
	if err != nil {
		return nil, err
	}
	out := tensor.New(1, c, h*n.s, w*n.s)
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h*n.s; y++ {
			for x := 0; x < w*n.s; x++ {
				out.Data[(ch*h*n.s+y)*w*n.s+x] = in.Data[(ch*h+y/n.s)*w+x/n.s]
			}
		}
	}
	return out, nil
}

type failingUpscaler struct{}

func (failingUpscaler) Upscale(ctx context.Context, img *tensor.Image) (*tensor.Image, error) {
	return nil, errors.New("inference failed")
}

// memFile stands in for a file opened by a save dialog.
type memFile struct {
	bytes.Buffer
	closed bool
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

type countingSaver struct {
	calls int
	last  *tensor.Image
}

func (s *countingSaver) Save(ctx context.Context, img *tensor.Image, userID int64, path string, w io.WriteCloser) (*persist.SaveResult, error) {
	_ = w.Close()
	s.calls++
	s.last = img
	return &persist.SaveResult{Path: path, ImageID: int64(s.calls)}, nil
}

func gradient(rows, cols int) *tensor.Image {
	img := tensor.NewImage(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.Set(y, x, uint8(x*20), uint8(y*20), uint8((x+y)*10))
		}
	}
	return img
}

type harness struct {
	ctrl    *Controller
	saver   *countingSaver
	backs   int
	logouts int
}

func newHarness(t *testing.T, up Upscaler, saver Saver) *harness {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	h := &harness{}
	if saver == nil {
		h.saver = &countingSaver{}
		saver = h.saver
	}
	if up == nil {
		up = core.NewUpscaler(nearestNet{s: 4}, logger)
	}
	ctrl, err := NewController(ControllerConfig{
		Decoder: mapDecoder{
			"a.png": gradient(3, 5),
			"b.png": gradient(2, 2),
		},
		Upscaler: up,
		Saver:    saver,
		UserID:   9,
		OnBack:   func() { h.backs++ },
		OnLogout: func() { h.logouts++ },
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewController error: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func TestNewController_RequiresHandlers(t *testing.T) {
	base := ControllerConfig{
		Decoder:  mapDecoder{},
		Upscaler: failingUpscaler{},
		Saver:    &countingSaver{},
		OnBack:   func() {},
		OnLogout: func() {},
	}

	tests := []struct {
		name   string
		mutate func(*ControllerConfig)
	}{
		{"no decoder", func(c *ControllerConfig) { c.Decoder = nil }},
		{"no upscaler", func(c *ControllerConfig) { c.Upscaler = nil }},
		{"no saver", func(c *ControllerConfig) { c.Saver = nil }},
		{"no back", func(c *ControllerConfig) { c.OnBack = nil }},
		{"no logout", func(c *ControllerConfig) { c.OnLogout = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := NewController(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestController_InitialState(t *testing.T) {
	h := newHarness(t, nil, nil)

	if h.ctrl.State() != NoInputSelected {
		t.Errorf("State = %s, want %s", h.ctrl.State(), NoInputSelected)
	}
	if h.ctrl.CanPreview() || h.ctrl.CanSave() {
		t.Error("preview and save must be disabled before selection")
	}
	if _, err := h.ctrl.Preview(context.Background()); !errors.Is(err, ErrNoInput) {
		t.Errorf("Preview error = %v, want ErrNoInput", err)
	}
	f := &memFile{}
	if _, err := h.ctrl.Save(context.Background(), "out.png", f); !errors.Is(err, ErrNoOutput) {
		t.Errorf("Save error = %v, want ErrNoOutput", err)
	}
	if !f.closed {
		t.Error("Save without output left the file open")
	}
	if h.saver.calls != 0 {
		t.Errorf("saver called %d times, want 0", h.saver.calls)
	}
}

func TestController_SelectPreviewSave(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	if _, err := h.ctrl.SelectInput("a.png"); err != nil {
		t.Fatalf("SelectInput error: %v", err)
	}
	if h.ctrl.State() != InputSelected || !h.ctrl.CanPreview() || h.ctrl.CanSave() {
		t.Fatalf("after select: state=%s preview=%v save=%v", h.ctrl.State(), h.ctrl.CanPreview(), h.ctrl.CanSave())
	}

	out, err := h.ctrl.Preview(ctx)
	if err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	if out.Rows != 12 || out.Cols != 20 {
		t.Errorf("output %dx%d, want 20x12", out.Cols, out.Rows)
	}
	if h.ctrl.State() != OutputPreviewed || !h.ctrl.CanSave() {
		t.Fatalf("after preview: state=%s save=%v", h.ctrl.State(), h.ctrl.CanSave())
	}

	res, err := h.ctrl.Save(ctx, "out.png", &memFile{})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if res.Path != "out.png" || h.saver.last != out {
		t.Errorf("saved %+v, want the previewed output", res)
	}
	if h.ctrl.State() != OutputPreviewed {
		t.Errorf("state after save = %s", h.ctrl.State())
	}
}

func TestController_NewSelectionKeepsOutput(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	if _, err := h.ctrl.SelectInput("a.png"); err != nil {
		t.Fatal(err)
	}
	first, err := h.ctrl.Preview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.SelectInput("b.png"); err != nil {
		t.Fatal(err)
	}

	if h.ctrl.State() != InputSelected {
		t.Errorf("state = %s, want %s", h.ctrl.State(), InputSelected)
	}
	if !h.ctrl.CanSave() {
		t.Fatal("save should stay enabled with a previous output")
	}
	if _, err := h.ctrl.Save(ctx, "prev.png", &memFile{}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if h.saver.last != first {
		t.Error("saved image is not the previous output")
	}
}

func TestController_BadSelectionKeepsSession(t *testing.T) {
	h := newHarness(t, nil, nil)

	if _, err := h.ctrl.SelectInput("a.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.SelectInput("broken.png"); !errors.Is(err, imgio.ErrDecode) {
		t.Fatalf("SelectInput error = %v, want ErrDecode", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.InputPath != "a.png" || snap.State != InputSelected {
		t.Errorf("session changed after failed selection: %+v", snap)
	}
}

func TestController_PreviewFailureKeepsState(t *testing.T) {
	h := newHarness(t, failingUpscaler{}, nil)

	if _, err := h.ctrl.SelectInput("a.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.Preview(context.Background()); err == nil {
		t.Fatal("expected preview error")
	}
	if h.ctrl.State() != InputSelected || h.ctrl.CanSave() {
		t.Errorf("state=%s save=%v after failed preview", h.ctrl.State(), h.ctrl.CanSave())
	}
}

func TestController_PreviewIsDeterministic(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	if _, err := h.ctrl.SelectInput("a.png"); err != nil {
		t.Fatal(err)
	}
	a, err := h.ctrl.Preview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.ctrl.Preview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Error("two previews of the same input differ")
	}
}

func TestController_BackAndLogout(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	if _, err := h.ctrl.SelectInput("a.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.Preview(ctx); err != nil {
		t.Fatal(err)
	}

	h.ctrl.Back()
	if h.backs != 1 {
		t.Errorf("back handler called %d times, want 1", h.backs)
	}
	if !h.ctrl.CanSave() {
		t.Error("back must not drop the session")
	}

	h.ctrl.Logout()
	if h.logouts != 1 {
		t.Errorf("logout handler called %d times, want 1", h.logouts)
	}
	if h.ctrl.State() != NoInputSelected || h.ctrl.CanPreview() || h.ctrl.CanSave() {
		t.Error("logout must reset the session")
	}
}

func TestController_UnreachableDatabaseStillWritesFile(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	dir := t.TempDir()

	store, err := persist.NewStore(persist.Config{
		Dialect: persist.DialectSQLite,
		DSN:     filepath.Join(dir, "offline", "images.db"),
	}, logger)
	if err != nil {
		t.Fatal(err)
	}
	saver := persist.NewSaver(persist.SaverConfig{
		Encoder: imgio.NewImageLoader(logger),
		Store:   store,
		Logger:  logger,
	})
	h := newHarness(t, nil, saver)

	if _, err := h.ctrl.SelectInput("b.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.Preview(context.Background()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "result.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.ctrl.Save(context.Background(), path, f)

	var se *persist.SaveError
	if !errors.As(err, &se) || se.Stage != persist.StageDatabase {
		t.Fatalf("Save error = %v, want database SaveError", err)
	}
	if info, statErr := os.Stat(path); statErr != nil || info.Size() == 0 {
		t.Errorf("output file missing or empty: %v", statErr)
	}
}
