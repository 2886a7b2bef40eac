package layout

import (
	"fmt"
	"image"
	"strings"
)

// SplitLines 按换行拆分字幕文本，并丢弃去除首尾空白后为空的行。
// 保留行的首尾空格保持原样（影响居中时的行宽），行尾的 \r 会被去掉。
func SplitLines(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, ln := range raw {
		ln = strings.TrimSuffix(ln, "\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		lines = append(lines, ln)
	}
	return lines
}

// Build 计算每行字幕条的位置：字幕块贴住画布底部，自上而下依次排列。
// 第 i 行的顶部为 CanvasHeight - (N-i)*BandHeight，不做越界裁剪。
func Build(text string, opts BuildOptions) (*Result, error) {
	if opts.BandHeight <= 0 {
		return nil, fmt.Errorf("layout: 字幕条高度必须为正数，当前为 %d", opts.BandHeight)
	}
	if opts.CanvasWidth <= 0 || opts.CanvasHeight <= 0 {
		return nil, fmt.Errorf("layout: 画布尺寸无效 %dx%d", opts.CanvasWidth, opts.CanvasHeight)
	}

	res := &Result{
		CanvasWidth:  opts.CanvasWidth,
		CanvasHeight: opts.CanvasHeight,
		BandHeight:   opts.BandHeight,
		Lines:        []LineLayout{},
	}
	lines := SplitLines(text)
	if len(lines) == 0 {
		return res, nil
	}

	startY := opts.CanvasHeight - len(lines)*opts.BandHeight
	for i, content := range lines {
		ln := LineLayout{
			Text:   content,
			Top:    startY + i*opts.BandHeight,
			Height: opts.BandHeight,
		}
		if opts.Typesetter != nil {
			w, err := opts.Typesetter.MeasureLine(content, opts.Font)
			if err != nil {
				return nil, fmt.Errorf("layout: 测量第 %d 行失败: %w", i+1, err)
			}
			ln.Width = w
			ln.Overflow = w > float64(opts.CanvasWidth)
		}
		res.Lines = append(res.Lines, ln)
	}
	return res, nil
}

// FitWithin 返回在 maxW×maxH 范围内保持宽高比的预览尺寸。
// 仅当图片超出任一边界时才缩小；尺寸向下取整，与 canvas 元素的行为一致。
func FitWithin(width, height, maxW, maxH int) image.Point {
	if width <= 0 || height <= 0 {
		return image.Point{}
	}
	if width <= maxW && height <= maxH {
		return image.Pt(width, height)
	}
	ratio := min(float64(maxW)/float64(width), float64(maxH)/float64(height))
	w := max(int(float64(width)*ratio), 1)
	h := max(int(float64(height)*ratio), 1)
	return image.Pt(w, h)
}

// Scale 是导出分辨率相对预览分辨率的缩放系数。
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ExportScale 按轴计算 native/preview 缩放系数。
func ExportScale(preview, native image.Point) Scale {
	if preview.X <= 0 || preview.Y <= 0 {
		return Scale{X: 1, Y: 1}
	}
	return Scale{
		X: float64(native.X) / float64(preview.X),
		Y: float64(native.Y) / float64(preview.Y),
	}
}
