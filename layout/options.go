package layout

// BuildOptions 配置一次字幕布局所需的画布尺寸、条高与可选的排版后端。
type BuildOptions struct {
	CanvasWidth  int
	CanvasHeight int
	BandHeight   int
	Font         FontSpec
	Typesetter   Typesetter // 可为空；为空时不测量行宽
}

// Typesetter 负责测量单行文字在给定字体下的绘制宽度（像素）。
type Typesetter interface {
	MeasureLine(content string, font FontSpec) (float64, error)
}
