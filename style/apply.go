package style

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/captioner/dsl"
	"github.com/ByLCY/captioner/fonts"
	"github.com/ByLCY/captioner/layout"
)

// Apply 将解析后的字幕样式文件叠加到 base 上并校验结果。
// 未出现的属性沿用 base 的值；未知属性报错并附带位置。
func Apply(doc *dsl.Document, base Settings) (Settings, error) {
	if doc == nil {
		return base, nil
	}
	out := base
	for _, a := range doc.Assignments() {
		if err := applyAssignment(&out, a); err != nil {
			return base, fmt.Errorf("%s: %w", a.Pos, err)
		}
	}
	if lines, ok := doc.TextLines(); ok {
		out.Text = strings.Join(lines, "\n")
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

func applyAssignment(s *Settings, a *dsl.Assignment) error {
	raw := a.Value.Raw()
	switch strings.ToLower(a.Key) {
	case "band-height":
		v, err := pixels(raw)
		if err != nil {
			return fmt.Errorf("band-height: %w", err)
		}
		s.BandHeight = v
	case "font-size":
		v, err := pixels(raw)
		if err != nil {
			return fmt.Errorf("font-size: %w", err)
		}
		s.FontSize = v
	case "font-color":
		if !IsValidHexColor(raw) {
			return fmt.Errorf("font-color: 无效的颜色值 %q", raw)
		}
		s.FontColor = raw
	case "outline-color":
		if !IsValidHexColor(raw) {
			return fmt.Errorf("outline-color: 无效的颜色值 %q", raw)
		}
		s.OutlineColor = raw
	case "font-family":
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("font-family 不能为空")
		}
		s.FontFamily = raw
	case "font-weight":
		w, err := fonts.ParseWeight(raw)
		if err != nil {
			return fmt.Errorf("font-weight: %w", err)
		}
		s.FontWeight = strconv.Itoa(w)
	case "text":
		if a.Value.Kind() != "string" {
			return fmt.Errorf("text 需要字符串，得到 %s", a.Value.Kind())
		}
		s.Text = raw
	default:
		return fmt.Errorf("未知属性 %q", a.Key)
	}
	return nil
}

// pixels 解析 "60"、"60px" 或 "30pt"，返回四舍五入后的像素值。
func pixels(raw string) (int, error) {
	l, ok := layout.ParseLength(raw)
	if !ok {
		return 0, fmt.Errorf("无效的长度 %q", raw)
	}
	px := int(math.Round(l.ToPX()))
	if px <= 0 {
		return 0, fmt.Errorf("长度必须为正数，当前为 %q", raw)
	}
	return px, nil
}
