package session

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/captioner/layout"
	"github.com/ByLCY/captioner/style"
)

// Export 是一次导出的结果：按原图分辨率合成并编码后的 PNG。
type Export struct {
	Filename    string
	PNG         []byte
	Size        image.Point
	Scale       layout.Scale
	Settings    style.Settings // 缩放到原图分辨率后的样式
	StrokeWidth float64
	Layout      *layout.Result
}

// ExportResult 是 ExportAsync 的返回值。
type ExportResult struct {
	Export *Export
	Err    error
}

// Export 在独立的原图分辨率画布上合成并编码 PNG，预览画布不受影响。
// 条高、字号与描边宽度按 原图/预览 的纵向比例缩放。
func (s *Session) Export() (*Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.background == nil || s.preview == nil {
		return nil, fmt.Errorf("%w: 请先加载背景图", ErrMissingPrecondition)
	}

	native := s.background.Bounds().Size()
	scale := layout.ExportScale(s.preview.Bounds().Size(), native)
	settings := s.settings.Scaled(scale.Y)
	stroke := s.cfg.Render.StrokeWidth * scale.Y

	target := image.NewRGBA(image.Rect(0, 0, native.X, native.Y))
	res, err := s.composite(target, settings, stroke, s.data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, target, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: 编码 PNG 失败: %v", ErrRendering, err)
	}
	return &Export{
		Filename:    Filename(s.cfg.Export.Prefix, s.now()),
		PNG:         buf.Bytes(),
		Size:        native,
		Scale:       scale,
		Settings:    settings,
		StrokeWidth: stroke,
		Layout:      res,
	}, nil
}

// ExportAsync 在后台执行一次 Export。busy 在开始前以 true、结束后以 false 调用，可为空。
func (s *Session) ExportAsync(busy func(bool)) <-chan ExportResult {
	out := make(chan ExportResult, 1)
	if busy != nil {
		busy(true)
	}
	go func() {
		exp, err := s.Export()
		if busy != nil {
			busy(false)
		}
		out <- ExportResult{Export: exp, Err: err}
		close(out)
	}()
	return out
}

var filenameReplacer = strings.NewReplacer(":", "-", ".", "-")

// Filename 生成带时间戳的导出文件名，例如 subtitle-2024-03-05T06-07-08-009Z.png。
func Filename(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = "subtitle"
	}
	stamp := filenameReplacer.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	return prefix + "-" + stamp + ".png"
}

// Save 将 PNG 写入 dir 下的 Filename，返回完整路径。
func (e *Export) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建导出目录失败: %w", err)
	}
	path := filepath.Join(dir, e.Filename)
	if err := os.WriteFile(path, e.PNG, 0o644); err != nil {
		return "", fmt.Errorf("写入导出文件失败: %w", err)
	}
	return path, nil
}
