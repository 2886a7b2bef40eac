// Package config 读取字幕工具的配置文件（TOML 或 YAML）。
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/captioner/fonts"
	"github.com/ByLCY/captioner/style"
)

// Config 汇总预览、上传、渲染、导出与默认样式等设置。
type Config struct {
	Preview Preview        `toml:"preview" yaml:"preview"`
	Upload  Upload         `toml:"upload" yaml:"upload"`
	Render  Render         `toml:"render" yaml:"render"`
	Export  Export         `toml:"export" yaml:"export"`
	Style   style.Settings `toml:"style" yaml:"style"`
	Fonts   []Font         `toml:"font" yaml:"fonts"`
}

// Preview 限定预览画布的尺寸上限与防抖间隔。
type Preview struct {
	MaxWidth   int `toml:"max_width" yaml:"max_width"`
	MaxHeight  int `toml:"max_height" yaml:"max_height"`
	DebounceMS int `toml:"debounce_ms" yaml:"debounce_ms"`
}

// Debounce 返回防抖间隔。
func (p Preview) Debounce() time.Duration {
	return time.Duration(p.DebounceMS) * time.Millisecond
}

type Upload struct {
	MaxBytes int64 `toml:"max_bytes" yaml:"max_bytes"`
}

type Render struct {
	DarkenFactor float64 `toml:"darken_factor" yaml:"darken_factor"`
	StrokeWidth  float64 `toml:"stroke_width" yaml:"stroke_width"`
}

type Export struct {
	Dir    string `toml:"dir" yaml:"dir"`
	Prefix string `toml:"prefix" yaml:"prefix"`
}

// Font 声明一个额外的字体文件，Path 相对于配置文件所在目录。
type Font struct {
	Family string `toml:"family" yaml:"family"`
	Weight string `toml:"weight" yaml:"weight"`
	Path   string `toml:"path" yaml:"path"`
}

// Default 返回内置默认配置。
func Default() Config {
	return Config{
		Preview: Preview{MaxWidth: 800, MaxHeight: 600, DebounceMS: 100},
		Upload:  Upload{MaxBytes: 10 << 20},
		Render:  Render{DarkenFactor: 0.3, StrokeWidth: 3},
		Export:  Export{Dir: ".", Prefix: "subtitle"},
		Style:   style.Default(),
	}
}

// Load 读取配置文件，按扩展名选择 TOML（.toml）或 YAML（.yaml/.yml）。
// 文件中未出现的字段保留默认值。
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置失败: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("解析 TOML 配置失败: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("配置包含未知字段: %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("解析 YAML 配置失败: %w", err)
		}
	default:
		return cfg, fmt.Errorf("不支持的配置格式 %q（仅支持 .toml、.yaml、.yml）", filepath.Ext(path))
	}

	base := filepath.Dir(path)
	for i := range cfg.Fonts {
		if p := cfg.Fonts[i].Path; p != "" && !filepath.IsAbs(p) {
			cfg.Fonts[i].Path = filepath.Join(base, p)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查配置取值范围。
func (c Config) Validate() error {
	if c.Preview.MaxWidth <= 0 || c.Preview.MaxHeight <= 0 {
		return fmt.Errorf("预览尺寸上限必须为正数，当前为 %dx%d", c.Preview.MaxWidth, c.Preview.MaxHeight)
	}
	if c.Preview.DebounceMS < 0 {
		return fmt.Errorf("防抖间隔不能为负数")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("上传大小上限必须为正数")
	}
	if c.Render.DarkenFactor < 0 || c.Render.DarkenFactor > 1 {
		return fmt.Errorf("压暗系数必须位于 [0,1]，当前为 %g", c.Render.DarkenFactor)
	}
	if c.Render.StrokeWidth <= 0 {
		return fmt.Errorf("描边宽度必须为正数")
	}
	if err := c.Style.Validate(); err != nil {
		return fmt.Errorf("默认样式无效: %w", err)
	}
	for i, f := range c.Fonts {
		if strings.TrimSpace(f.Family) == "" || f.Path == "" {
			return fmt.Errorf("第 %d 个字体缺少 family 或 path", i+1)
		}
		if _, err := fonts.ParseWeight(f.Weight); err != nil {
			return fmt.Errorf("字体 %s: %w", f.Family, err)
		}
	}
	return nil
}

// RegisterFonts 将配置中声明的字体加入注册表。
func (c Config) RegisterFonts(reg *fonts.Registry) error {
	for _, f := range c.Fonts {
		w, err := fonts.ParseWeight(f.Weight)
		if err != nil {
			return fmt.Errorf("字体 %s: %w", f.Family, err)
		}
		if err := reg.RegisterFile(f.Family, w, f.Path); err != nil {
			return err
		}
	}
	return nil
}
