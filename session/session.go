// Package session 持有当前背景图、样式与预览画布，把用户操作转换为样式更新和渲染调用。
package session

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/captioner/binding"
	"github.com/ByLCY/captioner/config"
	"github.com/ByLCY/captioner/layout"
	"github.com/ByLCY/captioner/renderer"
	"github.com/ByLCY/captioner/style"
)

// sniffLen 与 http.DetectContentType 读取的字节数一致。
const sniffLen = 512

// Session 是单个编辑会话：一张背景图、一份样式与一块预览画布。
// 所有渲染都在 mu 保护下串行执行。
type Session struct {
	cfg        config.Config
	renderer   renderer.Renderer
	typesetter layout.Typesetter
	now        func() time.Time
	onPreview  func(*image.RGBA, error)
	debouncer  *Debouncer

	mu         sync.Mutex
	settings   style.Settings
	data       any
	background image.Image
	imageName  string
	preview    *image.RGBA
	lastLayout *layout.Result
}

// Option 配置 Session。
type Option func(*Session)

// WithPreviewHandler 注册预览回调，每次预览渲染（含防抖触发的渲染）完成后调用。
// 回调收到的是预览画布的副本。
func WithPreviewHandler(fn func(*image.RGBA, error)) Option {
	return func(s *Session) { s.onPreview = fn }
}

// WithClock 替换导出文件名使用的时钟。
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithSettings 设置初始样式，默认使用配置中的 style。
func WithSettings(settings style.Settings) Option {
	return func(s *Session) { s.settings = settings }
}

// WithData 设置初始绑定数据。
func WithData(data any) Option {
	return func(s *Session) { s.data = data }
}

// New 创建会话。若 r 同时实现 layout.Typesetter，布局时会测量行宽。
func New(cfg config.Config, r renderer.Renderer, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		renderer: r,
		now:      time.Now,
		settings: cfg.Style,
	}
	if ts, ok := r.(layout.Typesetter); ok {
		s.typesetter = ts
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = NewDebouncer(cfg.Preview.Debounce(), s.renderScheduled)
	return s
}

// Close 停止待执行的预览渲染。
func (s *Session) Close() {
	s.debouncer.Stop()
}

// LoadImage 校验并解码上传的图片，成功后替换背景图并立即渲染预览。
// size 为未知时传 -1，此时在读取过程中限制大小；contentType 为空时根据内容嗅探。
// 任何校验失败都返回 ErrInvalidInput，会话状态与预览画布不变。
func (s *Session) LoadImage(name string, r io.Reader, size int64, contentType string) error {
	limit := s.cfg.Upload.MaxBytes
	if size > limit {
		return fmt.Errorf("%w: 文件 %s 大小 %d 字节超过上限 %d 字节", ErrInvalidInput, name, size, limit)
	}
	br := bufio.NewReaderSize(r, sniffLen)
	if contentType == "" {
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: 读取文件 %s 失败: %v", ErrInvalidInput, name, err)
		}
		contentType = http.DetectContentType(head)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("%w: 文件 %s 不是图片（%s）", ErrInvalidInput, name, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(br, limit+1))
	if err != nil {
		return fmt.Errorf("%w: 读取文件 %s 失败: %v", ErrInvalidInput, name, err)
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: 文件 %s 超过上限 %d 字节", ErrInvalidInput, name, limit)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: 无法解码图片 %s: %v", ErrInvalidInput, name, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: 图片 %s 尺寸为空", ErrInvalidInput, name)
	}

	fit := layout.FitWithin(b.Dx(), b.Dy(), s.cfg.Preview.MaxWidth, s.cfg.Preview.MaxHeight)
	s.mu.Lock()
	s.background = img
	s.imageName = name
	s.preview = image.NewRGBA(image.Rect(0, 0, fit.X, fit.Y))
	s.mu.Unlock()

	s.notify(s.RenderPreview())
	return nil
}

// Update 在样式副本上应用 fn，校验通过后保存并安排一次防抖预览渲染。
// 校验失败返回 ErrInvalidInput，当前样式不变。
func (s *Session) Update(fn func(*style.Settings)) error {
	s.mu.Lock()
	next := s.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.settings = next
	s.mu.Unlock()

	s.debouncer.Trigger()
	return nil
}

// SetData 设置字幕文本 ${path} 占位符使用的数据，并安排一次防抖预览渲染。
func (s *Session) SetData(data any) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	s.debouncer.Trigger()
}

// Settings 返回当前样式。
func (s *Session) Settings() style.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// HasImage 报告是否已加载背景图。
func (s *Session) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background != nil
}

// PreviewSize 返回预览画布尺寸；未加载背景图时为零值。
func (s *Session) PreviewSize() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		return image.Point{}
	}
	return s.preview.Bounds().Size()
}

// ImageSize 返回背景图原始尺寸；未加载时为零值。
func (s *Session) ImageSize() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.background == nil {
		return image.Point{}
	}
	return s.background.Bounds().Size()
}

// Layout 返回最近一次预览渲染的布局结果。
func (s *Session) Layout() *layout.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLayout
}

// CaptionText 返回代入数据并做 NFC 规范化后的字幕文本。
func (s *Session) CaptionText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return captionText(s.settings.Text, s.data)
}

func captionText(text string, data any) string {
	return norm.NFC.String(binding.Interpolate(text, data))
}

// RenderPreview 在预览画布上同步重绘，返回画布副本。
func (s *Session) RenderPreview() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.background == nil {
		return nil, fmt.Errorf("%w: 尚未加载背景图", ErrMissingPrecondition)
	}
	res, err := s.composite(s.preview, s.settings, s.cfg.Render.StrokeWidth, s.data)
	if err != nil {
		return nil, err
	}
	s.lastLayout = res
	return cloneRGBA(s.preview), nil
}

func (s *Session) renderScheduled() {
	img, err := s.RenderPreview()
	if errors.Is(err, ErrMissingPrecondition) {
		return
	}
	s.notify(img, err)
}

func (s *Session) notify(img *image.RGBA, err error) {
	if s.onPreview != nil {
		s.onPreview(img, err)
	}
}

// composite 计算布局并在 dst 上合成，绘制过程中的 panic 转换为 ErrRendering。
// 调用方需持有 mu。
func (s *Session) composite(dst *image.RGBA, settings style.Settings, stroke float64, data any) (res *layout.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrRendering, rec)
		}
	}()

	opts, err := renderOptions(settings, stroke, s.cfg.Render.DarkenFactor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	size := dst.Bounds().Size()
	res, err = layout.Build(captionText(settings.Text, data), layout.BuildOptions{
		CanvasWidth:  size.X,
		CanvasHeight: size.Y,
		BandHeight:   settings.BandHeight,
		Font:         opts.Font,
		Typesetter:   s.typesetter,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendering, err)
	}
	if err := s.renderer.Composite(dst, s.background, res, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendering, err)
	}
	return res, nil
}

func renderOptions(settings style.Settings, stroke, darken float64) (renderer.Options, error) {
	fontColor, err := style.ParseHexColor(settings.FontColor)
	if err != nil {
		return renderer.Options{}, err
	}
	outline, err := style.ParseHexColor(settings.OutlineColor)
	if err != nil {
		return renderer.Options{}, err
	}
	return renderer.Options{
		Font:         settings.Font(),
		FontColor:    fontColor,
		OutlineColor: outline,
		StrokeWidth:  stroke,
		DarkenFactor: darken,
	}, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
