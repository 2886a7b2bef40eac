// Package style 定义字幕样式设置：条高、字号、颜色、字体与文本内容。
package style

import (
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/ByLCY/captioner/fonts"
	"github.com/ByLCY/captioner/layout"
)

// SoftCharLimit 超过该字符数时仅提示，不做截断。
const SoftCharLimit = 1000

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Settings 是一次渲染所用的完整样式。值类型，按值传递。
// BandHeight 与 FontSize 以预览分辨率下的像素为单位。
type Settings struct {
	BandHeight   int    `json:"bandHeight" toml:"band_height" yaml:"band_height"`
	FontSize     int    `json:"fontSize" toml:"font_size" yaml:"font_size"`
	FontColor    string `json:"fontColor" toml:"font_color" yaml:"font_color"`
	OutlineColor string `json:"outlineColor" toml:"outline_color" yaml:"outline_color"`
	FontFamily   string `json:"fontFamily" toml:"font_family" yaml:"font_family"`
	FontWeight   string `json:"fontWeight" toml:"font_weight" yaml:"font_weight"`
	Text         string `json:"text" toml:"text" yaml:"text"`
}

// Default 返回默认样式。
func Default() Settings {
	return Settings{
		BandHeight:   60,
		FontSize:     40,
		FontColor:    "#030303",
		OutlineColor: "#ffffff",
		FontFamily:   fonts.Fallback,
		FontWeight:   "400",
	}
}

// IsValidHexColor 报告 s 是否为 #rrggbb 形式的颜色。
func IsValidHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// ParseHexColor 将 #rrggbb 解析为不透明颜色。
func ParseHexColor(s string) (color.RGBA, error) {
	if !IsValidHexColor(s) {
		return color.RGBA{}, fmt.Errorf("无效的颜色值 %q，应为 #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("解析颜色 %q 失败: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Validate 检查设置是否可以直接用于渲染。
func (s Settings) Validate() error {
	if s.BandHeight <= 0 {
		return fmt.Errorf("字幕条高度必须为正数，当前为 %d", s.BandHeight)
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("字号必须为正数，当前为 %d", s.FontSize)
	}
	if !IsValidHexColor(s.FontColor) {
		return fmt.Errorf("无效的文字颜色 %q", s.FontColor)
	}
	if !IsValidHexColor(s.OutlineColor) {
		return fmt.Errorf("无效的描边颜色 %q", s.OutlineColor)
	}
	if _, err := fonts.ParseWeight(s.FontWeight); err != nil {
		return err
	}
	return nil
}

// Scaled 按系数同时缩放条高与字号，结果四舍五入且不小于 1。
func (s Settings) Scaled(factor float64) Settings {
	s.BandHeight = scaleInt(s.BandHeight, factor)
	s.FontSize = scaleInt(s.FontSize, factor)
	return s
}

func scaleInt(v int, factor float64) int {
	return max(int(math.Round(float64(v)*factor)), 1)
}

// CharCount 返回文本的字符数（按 rune 计）。
func (s Settings) CharCount() int {
	return utf8.RuneCountInString(s.Text)
}

// OverSoftLimit 报告文本是否超过 SoftCharLimit。
func (s Settings) OverSoftLimit() bool {
	return s.CharCount() > SoftCharLimit
}

// Font 返回布局与渲染使用的字体参数。
func (s Settings) Font() layout.FontSpec {
	return layout.FontSpec{
		Family: s.FontFamily,
		Weight: s.FontWeight,
		Size:   float64(s.FontSize),
	}
}
