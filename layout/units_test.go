package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, pt := range samples {
		mm := pt * PtToMm
		back := mm * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt mm=%g back=%g diff=%g", pt, mm, back, diff)
		}
	}
}

// TestParseLength 覆盖字幕样式文件中常见的长度写法。
func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		px   float64
		unit Unit
	}{
		{"60", 60, UnitNone},
		{"60px", 60, UnitPX},
		{" 30pt ", 40, UnitPT},
		{"12.5PX", 12.5, UnitPX},
	}
	for _, c := range cases {
		l, ok := ParseLength(c.in)
		if !ok {
			t.Fatalf("%q 应当可以解析", c.in)
		}
		if l.Unit != c.unit {
			t.Fatalf("%q 单位错误: got=%s want=%s", c.in, UnitToString(l.Unit), UnitToString(c.unit))
		}
		if diff := math.Abs(l.ToPX() - c.px); diff > 1e-9 {
			t.Fatalf("%q 转 px 错误: got=%g want=%g", c.in, l.ToPX(), c.px)
		}
	}
	for _, bad := range []string{"", "px", "abc", "1..2pt"} {
		if _, ok := ParseLength(bad); ok {
			t.Fatalf("%q 不应解析成功", bad)
		}
	}
}
