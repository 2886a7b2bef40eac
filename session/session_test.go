package session

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/captioner/config"
	"github.com/ByLCY/captioner/layout"
	"github.com/ByLCY/captioner/renderer"
	"github.com/ByLCY/captioner/style"
)

// recordingRenderer 只绘制背景并记录每次调用的参数。
type recordingRenderer struct {
	mu    sync.Mutex
	calls []call
	panic bool
}

type call struct {
	size image.Point
	res  *layout.Result
	opts renderer.Options
}

func (r *recordingRenderer) Composite(dst *image.RGBA, bg image.Image, res *layout.Result, opts renderer.Options) error {
	if r.panic {
		panic("boom")
	}
	renderer.DrawBackground(dst, bg)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{size: dst.Bounds().Size(), res: res, opts: opts})
	return nil
}

// sized 返回最近一次目标尺寸为 size 的调用。
func (r *recordingRenderer) sized(t *testing.T, size image.Point) call {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].size == size {
			return r.calls[i]
		}
	}
	t.Fatalf("no render at %v", size)
	return call{}
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 120, G: 80, B: 40, A: 255})
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

func newSession(t *testing.T, opts ...Option) (*Session, *recordingRenderer) {
	t.Helper()
	r := &recordingRenderer{}
	s := New(config.Default(), r, opts...)
	t.Cleanup(s.Close)
	return s, r
}

func load(t *testing.T, s *Session, w, h int) {
	t.Helper()
	data := encodePNG(t, w, h)
	if err := s.LoadImage("bg.png", bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
}

func TestLoadImageRejectsOversizedFile(t *testing.T) {
	s, r := newSession(t)
	err := s.LoadImage("big.png", strings.NewReader("x"), 15*1024*1024, "image/png")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if s.HasImage() || r.count() != 0 {
		t.Fatalf("rejected upload must not change state")
	}
}

func TestLoadImageBoundsUnknownSize(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.MaxBytes = 16
	s := New(cfg, &recordingRenderer{})
	defer s.Close()
	data := encodePNG(t, 50, 50)
	err := s.LoadImage("bg.png", bytes.NewReader(data), -1, "image/png")
	if !errors.Is(err, ErrInvalidInput) || s.HasImage() {
		t.Fatalf("expected size rejection while reading, got %v", err)
	}
}

func TestLoadImageRejectsNonImage(t *testing.T) {
	s, r := newSession(t)
	load(t, s, 20, 10)
	before, err := s.RenderPreview()
	if err != nil {
		t.Fatalf("RenderPreview failed: %v", err)
	}
	calls := r.count()

	cases := []struct {
		body, contentType string
		size              int64
	}{
		{"hello world", "text/plain", 11},
		{"hello world", "", 11},
		{"definitely not a png", "image/png", 20},
		{string(encodePNG(t, 30, 30)), "image/png", 15 * 1024 * 1024},
	}
	for _, c := range cases {
		err := s.LoadImage("upload", strings.NewReader(c.body), c.size, c.contentType)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q (%q): expected ErrInvalidInput, got %v", c.contentType, c.body[:min(len(c.body), 20)], err)
		}
	}
	if r.count() != calls {
		t.Fatalf("rejected uploads must not trigger a render")
	}
	if s.ImageSize() != image.Pt(20, 10) || s.PreviewSize() != image.Pt(20, 10) {
		t.Fatalf("background replaced by a rejected upload")
	}
	after, err := s.RenderPreview()
	if err != nil {
		t.Fatalf("RenderPreview failed: %v", err)
	}
	if !bytes.Equal(before.Pix, after.Pix) {
		t.Fatalf("preview pixels changed after rejected uploads")
	}
}

func TestLoadImageSniffsContentType(t *testing.T) {
	s, _ := newSession(t)
	data := encodePNG(t, 8, 8)
	if err := s.LoadImage("bg", bytes.NewReader(data), int64(len(data)), ""); err != nil {
		t.Fatalf("sniffed PNG should load: %v", err)
	}
}

func TestMissingImage(t *testing.T) {
	s, _ := newSession(t)
	if _, err := s.Export(); !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition, got %v", err)
	}
	if _, err := s.RenderPreview(); !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition, got %v", err)
	}
}

func TestEndToEndPreviewAndExport(t *testing.T) {
	s, r := newSession(t)
	if err := s.Update(func(st *style.Settings) {
		st.BandHeight = 60
		st.Text = "Line1\nLine2"
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	load(t, s, 1000, 1000)

	if got := s.PreviewSize(); got != image.Pt(600, 600) {
		t.Fatalf("preview size = %v, want 600x600", got)
	}
	res := s.Layout()
	if res == nil || len(res.Lines) != 2 || res.Lines[0].Top != 480 || res.Lines[1].Top != 540 {
		t.Fatalf("unexpected preview layout %+v", res)
	}

	exp, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	c := r.sized(t, image.Pt(1000, 1000))
	if c.res.BandHeight != 100 || c.res.Lines[0].Top != 800 || c.res.Lines[1].Top != 900 {
		t.Fatalf("unexpected export layout %+v", c.res)
	}
	if math.Abs(c.opts.StrokeWidth-5) > 1e-9 || c.opts.Font.Size != 67 {
		t.Fatalf("unexpected export options %+v", c.opts)
	}
	img, err := imaging.Decode(bytes.NewReader(exp.PNG))
	if err != nil {
		t.Fatalf("exported PNG does not decode: %v", err)
	}
	if img.Bounds().Size() != image.Pt(1000, 1000) {
		t.Fatalf("exported PNG size = %v", img.Bounds().Size())
	}
	if s.PreviewSize() != image.Pt(600, 600) {
		t.Fatalf("export must not replace the preview target")
	}
}

func TestExportScalesByFour(t *testing.T) {
	cfg := config.Default()
	cfg.Preview.MaxWidth, cfg.Preview.MaxHeight = 400, 300
	r := &recordingRenderer{}
	s := New(cfg, r)
	defer s.Close()
	load(t, s, 1600, 1200)
	if err := s.Update(func(st *style.Settings) { st.Text = "x"; st.BandHeight = 50 }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	exp, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exp.Scale != (layout.Scale{X: 4, Y: 4}) {
		t.Fatalf("scale = %+v, want 4x4", exp.Scale)
	}
	if exp.Settings.BandHeight != 200 || exp.StrokeWidth != 12 {
		t.Fatalf("band=%d stroke=%g, want 200 and 12", exp.Settings.BandHeight, exp.StrokeWidth)
	}
}

func TestExportFilenameUsesClock(t *testing.T) {
	stamp := time.Date(2024, 3, 5, 6, 7, 8, 9_000_000, time.UTC)
	s, _ := newSession(t, WithClock(func() time.Time { return stamp }))
	load(t, s, 10, 10)
	exp, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exp.Filename != "subtitle-2024-03-05T06-07-08-009Z.png" {
		t.Fatalf("unexpected filename %q", exp.Filename)
	}
	path, err := exp.Save(t.TempDir())
	if err != nil || !strings.HasSuffix(path, exp.Filename) {
		t.Fatalf("Save failed: %q %v", path, err)
	}
}

func TestRendererPanicBecomesRenderingError(t *testing.T) {
	s, r := newSession(t)
	load(t, s, 10, 10)
	r.panic = true
	if _, err := s.Export(); !errors.Is(err, ErrRendering) {
		t.Fatalf("expected ErrRendering, got %v", err)
	}
}

func TestInvalidUpdateKeepsSettings(t *testing.T) {
	s, _ := newSession(t)
	before := s.Settings()
	err := s.Update(func(st *style.Settings) {
		st.FontColor = "#12G456"
		st.BandHeight = 99
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if s.Settings() != before {
		t.Fatalf("settings changed after invalid update")
	}
}

func TestCaptionTextBindsAndNormalizes(t *testing.T) {
	s, _ := newSession(t)
	s.SetData(map[string]any{"n": 3.0})
	if err := s.Update(func(st *style.Settings) { st.Text = "第 ${n} 集\ncafe\u0301" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := s.CaptionText(); got != "第 3 集\ncaf\u00e9" {
		t.Fatalf("unexpected caption text %q", got)
	}
}

func TestUpdatesAreDebounced(t *testing.T) {
	previews := make(chan error, 16)
	s, r := newSession(t, WithPreviewHandler(func(_ *image.RGBA, err error) { previews <- err }))
	load(t, s, 40, 40)
	<-previews
	before := r.count()

	for i := 1; i <= 5; i++ {
		if err := s.Update(func(st *style.Settings) { st.BandHeight = 10 + i }); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	select {
	case err := <-previews:
		if err != nil {
			t.Fatalf("debounced render failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced render never ran")
	}
	time.Sleep(250 * time.Millisecond)
	if got := r.count() - before; got != 1 {
		t.Fatalf("expected 1 debounced render, got %d", got)
	}
	if s.Layout().BandHeight != 15 {
		t.Fatalf("debounced render should use the latest settings")
	}
}

func TestExportAsyncReportsBusy(t *testing.T) {
	s, _ := newSession(t)
	load(t, s, 10, 10)
	var mu sync.Mutex
	var states []bool
	result := <-s.ExportAsync(func(b bool) {
		mu.Lock()
		states = append(states, b)
		mu.Unlock()
	})
	if result.Err != nil || result.Export == nil {
		t.Fatalf("async export failed: %v", result.Err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("unexpected busy sequence %v", states)
	}
}
