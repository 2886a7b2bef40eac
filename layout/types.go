package layout

// 该文件定义字幕布局结果，供布局计算、合成渲染与调试 JSON 共用。

// Result 保存一次布局计算的画布尺寸与逐行字幕条。
type Result struct {
	CanvasWidth  int          `json:"canvasWidth"`
	CanvasHeight int          `json:"canvasHeight"`
	BandHeight   int          `json:"bandHeight"`
	Lines        []LineLayout `json:"lines"`
}

// LineLayout 表示一行字幕及其背景条所占的纵向区域（单位：像素）。
// Top 可以为负数：文字过多时字幕条会被推出画布顶部。
type LineLayout struct {
	Text     string  `json:"text"`
	Top      int     `json:"top"`
	Height   int     `json:"height"`
	Width    float64 `json:"width,omitempty"`    // 仅在提供 Typesetter 时测量
	Overflow bool    `json:"overflow,omitempty"` // 行宽超过画布宽度
}

// Bottom 返回字幕条的下边界。
func (l LineLayout) Bottom() int { return l.Top + l.Height }

// Mid 返回字幕条纵向中线，文字垂直居中于此。
func (l LineLayout) Mid() float64 { return float64(l.Top) + float64(l.Height)/2 }

// Empty 报告是否没有任何需要绘制的字幕行。
func (r *Result) Empty() bool { return r == nil || len(r.Lines) == 0 }

// BlockTop 返回整个字幕块的顶部坐标；无字幕时返回画布高度。
func (r *Result) BlockTop() int {
	if len(r.Lines) == 0 {
		return r.CanvasHeight
	}
	return r.Lines[0].Top
}

// FontSpec 描述测量与绘制文字所需的字体参数，Size 以像素为单位。
type FontSpec struct {
	Family string  `json:"family"`
	Weight string  `json:"weight"`
	Size   float64 `json:"size"`
}
