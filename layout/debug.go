package layout

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
)

// Debug 汇总预览布局与导出时使用的缩放系数，便于核对字幕条位置。
type Debug struct {
	*Result
	BlockTop    int         `json:"blockTop"`
	Native      image.Point `json:"native"`
	ExportScale Scale       `json:"exportScale"`
}

// NewDebug 基于预览布局与原图尺寸生成调试信息。
func NewDebug(res *Result, native image.Point) Debug {
	d := Debug{Result: res, Native: native, ExportScale: Scale{X: 1, Y: 1}}
	if res != nil {
		d.BlockTop = res.BlockTop()
		d.ExportScale = ExportScale(image.Pt(res.CanvasWidth, res.CanvasHeight), native)
	}
	return d
}

// WriteDebugJSON 将调试信息写为缩进 JSON；无布局时报错。
func WriteDebugJSON(d Debug, path string) error {
	if d.Result == nil {
		return fmt.Errorf("layout: 尚无布局结果可输出")
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
