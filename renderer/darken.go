package renderer

import (
	"image"
	"math"
)

// Darken 将 rect 内像素的 R、G、B 乘以 factor 并原地写回，Alpha 不变。
// rect 会被裁剪到 dst 范围内；factor 超出 [0,1] 时按边界值处理。
func Darken(dst *image.RGBA, rect image.Rectangle, factor float64) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	lut := darkenTable(factor)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := dst.Pix[dst.PixOffset(rect.Min.X, y):dst.PixOffset(rect.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			row[i] = lut[row[i]]
			row[i+1] = lut[row[i+1]]
			row[i+2] = lut[row[i+2]]
		}
	}
}

// darkenTable 预先计算每个通道值的乘积，结果四舍五入。
// 像素为预乘格式，乘数不大于 1 时结果仍满足 c <= a。
func darkenTable(factor float64) *[256]uint8 {
	factor = math.Min(math.Max(factor, 0), 1)
	var lut [256]uint8
	for v := range lut {
		lut[v] = uint8(math.Round(float64(v) * factor))
	}
	return &lut
}
