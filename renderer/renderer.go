package renderer

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/captioner/layout"
)

// DefaultDarkenFactor 是字幕条区域 RGB 通道的默认乘数。
const DefaultDarkenFactor = 0.3

// DefaultStrokeWidth 是预览分辨率下的描边宽度（像素）。
const DefaultStrokeWidth = 3.0

// Renderer 将背景图与字幕布局合成到目标画布上。
// dst 的尺寸即输出尺寸；bg 会被缩放到 dst 大小，bg 本身不会被修改。
type Renderer interface {
	Composite(dst *image.RGBA, bg image.Image, res *layout.Result, opts Options) error
}

// Options 描述一次合成使用的字体、颜色与描边参数，尺寸均为 dst 分辨率下的像素。
type Options struct {
	Font         layout.FontSpec
	FontColor    color.RGBA
	OutlineColor color.RGBA
	StrokeWidth  float64
	DarkenFactor float64
}

// DrawBackground 将 bg 绘制到 dst 上：尺寸一致时直接拷贝，否则用 Lanczos 重采样。
func DrawBackground(dst *image.RGBA, bg image.Image) {
	rect := dst.Bounds()
	if bg == nil {
		draw.Draw(dst, rect, image.Transparent, image.Point{}, draw.Src)
		return
	}
	src := bg
	if bg.Bounds().Dx() != rect.Dx() || bg.Bounds().Dy() != rect.Dy() {
		src = imaging.Resize(bg, rect.Dx(), rect.Dy(), imaging.Lanczos)
	}
	draw.Draw(dst, rect, src, src.Bounds().Min, draw.Src)
}

// BandRect 返回需要压暗的区域：从字幕块顶部到画布底部，横向铺满。
// 无字幕时返回空矩形。
func BandRect(res *layout.Result) image.Rectangle {
	if res.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(0, res.BlockTop(), res.CanvasWidth, res.CanvasHeight)
}
