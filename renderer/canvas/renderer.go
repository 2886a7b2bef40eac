package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/captioner/fonts"
	"github.com/ByLCY/captioner/layout"
	"github.com/ByLCY/captioner/renderer"
)

// Renderer draws caption bands and outlined text via github.com/tdewolff/canvas.
// The vector canvas is measured in millimetres and rasterized at one pixel per
// millimetre, so every layout pixel maps to one canvas unit.
type Renderer struct {
	registry *fonts.Registry

	fontMu       sync.Mutex
	fontFamilies map[string]*fontFamilyEntry
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// NewRenderer creates a renderer resolving fonts from reg. A nil registry
// falls back to the built-in Go fonts.
func NewRenderer(reg *fonts.Registry) *Renderer {
	if reg == nil {
		reg = fonts.NewRegistry()
	}
	return &Renderer{
		registry:     reg,
		fontFamilies: map[string]*fontFamilyEntry{},
	}
}

// MeasureLine 实现 layout.Typesetter 接口，返回单行文字的像素宽度。
func (r *Renderer) MeasureLine(content string, font layout.FontSpec) (float64, error) {
	face, err := r.fontFace(font, canvas.Black)
	if err != nil {
		return 0, err
	}
	return face.TextWidth(content), nil
}

// Composite 依次绘制背景、压暗字幕块区域、为每行绘制描边与填充文字。
func (r *Renderer) Composite(dst *image.RGBA, bg image.Image, res *layout.Result, opts renderer.Options) error {
	if dst == nil {
		return fmt.Errorf("渲染目标为空")
	}
	renderer.DrawBackground(dst, bg)
	if res.Empty() {
		return nil
	}
	bounds := dst.Bounds()
	if res.CanvasWidth != bounds.Dx() || res.CanvasHeight != bounds.Dy() {
		return fmt.Errorf("布局尺寸 %dx%d 与渲染目标 %dx%d 不一致",
			res.CanvasWidth, res.CanvasHeight, bounds.Dx(), bounds.Dy())
	}
	renderer.Darken(dst, renderer.BandRect(res), opts.DarkenFactor)

	layer, err := r.textLayer(res, opts)
	if err != nil {
		return err
	}
	draw.Draw(dst, bounds, layer, image.Point{}, draw.Over)
	return nil
}

// textLayer 在透明图层上绘制所有字幕行，背景像素不参与矢量重采样。
func (r *Renderer) textLayer(res *layout.Result, opts renderer.Options) (*image.RGBA, error) {
	face, err := r.fontFace(opts.Font, toCanvasColor(opts.FontColor))
	if err != nil {
		return nil, err
	}
	width := float64(res.CanvasWidth)
	height := float64(res.CanvasHeight)
	c := canvas.New(width, height)
	ctx := canvas.NewContext(c)

	metrics := face.Metrics()
	for i, line := range res.Lines {
		path, advance, err := face.ToPath(line.Text)
		if err != nil {
			return nil, fmt.Errorf("生成第 %d 行字形失败: %w", i+1, err)
		}
		x := (width - advance) / 2
		// 布局坐标以左上角为原点，canvas 默认以左下角为原点。
		baseline := line.Mid() + (metrics.Ascent-metrics.Descent)/2
		y := height - baseline

		if opts.StrokeWidth > 0 {
			ctx.SetFillColor(color.RGBA{})
			ctx.SetStrokeColor(toCanvasColor(opts.OutlineColor))
			ctx.SetStrokeWidth(opts.StrokeWidth)
			ctx.DrawPath(x, y, path)
		}
		ctx.SetStrokeColor(color.RGBA{})
		ctx.SetStrokeWidth(0)
		ctx.SetFillColor(toCanvasColor(opts.FontColor))
		ctx.DrawPath(x, y, path)
	}
	return rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace), nil
}

// fontFace 以像素字号创建字体面；canvas 的字号单位为 pt。
func (r *Renderer) fontFace(font layout.FontSpec, col color.Color) (*canvas.FontFace, error) {
	if font.Size <= 0 {
		return nil, fmt.Errorf("字号必须为正数，当前为 %g", font.Size)
	}
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(font.Size*layout.MmToPt, col, style, canvas.FontNormal), nil
}

// ensureFontFamily 按注册表实际解析出的字体族与字重缓存字体，
// 回退到 Fallback 的请求与直接请求 Fallback 共用同一缓存项。
func (r *Renderer) ensureFontFamily(font layout.FontSpec) (*canvas.FontFamily, canvas.FontStyle, error) {
	weight, err := fonts.ParseWeight(font.Weight)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	resolved, err := r.registry.Resolve(font.Family, weight)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	key := fontCacheKey(resolved.Family, resolved.Weight)

	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := fontStyleForWeight(resolved.Weight)
	family := canvas.NewFontFamily(resolved.Family)
	if err := family.LoadFont(resolved.Data, 0, style); err != nil {
		return nil, canvas.FontRegular, fmt.Errorf("加载字体 %s(%d) 失败: %w", resolved.Family, resolved.Weight, err)
	}
	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func fontCacheKey(family string, weight int) string {
	return family + "|" + strconv.Itoa(weight)
}

func fontStyleForWeight(weight int) canvas.FontStyle {
	switch {
	case weight >= 900:
		return canvas.FontBlack
	case weight >= 800:
		return canvas.FontExtraBold
	case weight >= 700:
		return canvas.FontBold
	case weight >= 600:
		return canvas.FontSemiBold
	case weight >= 500:
		return canvas.FontMedium
	case weight <= 300:
		return canvas.FontLight
	default:
		return canvas.FontRegular
	}
}

func toCanvasColor(c color.RGBA) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, float64(c.A)/255.0)
}
