package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"

	"github.com/ByLCY/captioner/binding"
	"github.com/ByLCY/captioner/config"
	"github.com/ByLCY/captioner/dsl"
	"github.com/ByLCY/captioner/fonts"
	"github.com/ByLCY/captioner/layout"
	canvasrenderer "github.com/ByLCY/captioner/renderer/canvas"
	"github.com/ByLCY/captioner/session"
	"github.com/ByLCY/captioner/style"
)

// cliOptions 汇总命令行参数；overrides 只包含显式设置过的样式参数。
type cliOptions struct {
	input      string
	stylePath  string
	configPath string
	output     string
	outDir     string
	preview    string
	debug      string
	watch      bool
	listFonts  bool
	data       any
	overrides  map[string]string
}

var styleFlags = []string{"text", "band-height", "font-size", "font-color", "outline-color", "font-family", "font-weight"}

func main() {
	var opts cliOptions
	flag.StringVar(&opts.input, "in", "", "背景图片路径")
	flag.StringVar(&opts.stylePath, "style", "", "字幕样式文件（.caption）路径")
	flag.StringVar(&opts.configPath, "config", "", "配置文件路径（.toml/.yaml）")
	flag.StringVar(&opts.output, "out", "", "导出 PNG 路径，留空则按时间戳命名")
	flag.StringVar(&opts.outDir, "out-dir", "", "导出目录，默认取配置 export.dir")
	flag.StringVar(&opts.preview, "preview", "", "预览 PNG 输出路径")
	flag.StringVar(&opts.debug, "debug", "", "布局调试 JSON 输出路径")
	flag.BoolVar(&opts.watch, "watch", false, "监听样式文件变化并刷新预览")
	flag.BoolVar(&opts.listFonts, "list-fonts", false, "列出可用字体族后退出")
	dataJSON := flag.String("data", "", "绑定到字幕文本的 JSON 数据")
	flag.String("text", "", "字幕文本，多行用换行分隔")
	flag.String("band-height", "", "字幕条高度（像素）")
	flag.String("font-size", "", "字号（像素，支持 pt 后缀）")
	flag.String("font-color", "", "文字颜色 #rrggbb")
	flag.String("outline-color", "", "描边颜色 #rrggbb")
	flag.String("font-family", "", "字体族")
	flag.String("font-weight", "", "字重（100-900、normal、bold）")
	flag.Parse()

	opts.overrides = map[string]string{}
	flag.Visit(func(f *flag.Flag) {
		for _, name := range styleFlags {
			if f.Name == name {
				opts.overrides[name] = f.Value.String()
			}
		}
	})
	if *dataJSON != "" {
		if err := json.Unmarshal([]byte(*dataJSON), &opts.data); err != nil {
			log.Fatalf("解析 data JSON 失败: %v", err)
		}
	}

	if err := run(opts); err != nil {
		log.Fatalf("生成字幕图片失败: %v", err)
	}
}

// run 串联配置、样式、背景图加载、预览与导出。
func run(opts cliOptions) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	reg := fonts.NewRegistry()
	if err := cfg.RegisterFonts(reg); err != nil {
		return err
	}
	if opts.listFonts {
		for _, family := range reg.Families() {
			fmt.Println(family)
		}
		return nil
	}
	if opts.input == "" {
		return fmt.Errorf("缺少 -in 背景图片路径")
	}
	if opts.watch && opts.stylePath == "" {
		return fmt.Errorf("-watch 需要同时指定 -style")
	}

	settings, err := loadSettings(cfg.Style, opts)
	if err != nil {
		return err
	}
	if !reg.Has(settings.FontFamily) {
		log.Printf("字体族 %q 未注册，将回退到 %s", settings.FontFamily, fonts.Fallback)
	}

	r := canvasrenderer.NewRenderer(reg)
	sess := session.New(cfg, r,
		session.WithSettings(settings),
		session.WithData(opts.data),
		session.WithPreviewHandler(previewWriter(opts.preview)),
	)
	defer sess.Close()

	if err := loadImageFile(sess, opts.input); err != nil {
		return err
	}
	reportWarnings(sess, opts.data)

	if opts.debug != "" {
		if err := writeDebug(layout.NewDebug(sess.Layout(), sess.ImageSize()), opts.debug); err != nil {
			return err
		}
	}

	if opts.watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watchStyle(ctx, sess, cfg.Style, opts); err != nil {
			return err
		}
		if opts.output == "" && opts.outDir == "" {
			return nil
		}
	}

	return export(sess, cfg, opts)
}

// loadSettings 依次叠加配置默认样式、样式文件与命令行参数。
func loadSettings(base style.Settings, opts cliOptions) (style.Settings, error) {
	settings := base
	if opts.stylePath != "" {
		file, err := os.Open(opts.stylePath)
		if err != nil {
			return base, fmt.Errorf("无法打开样式文件 %s: %w", opts.stylePath, err)
		}
		defer file.Close()
		doc, err := dsl.Parse(file)
		if err != nil {
			return base, fmt.Errorf("解析样式文件失败: %w", err)
		}
		if settings, err = style.Apply(doc, settings); err != nil {
			return base, fmt.Errorf("应用样式文件失败: %w", err)
		}
	}
	return applyOverrides(settings, opts.overrides)
}

// applyOverrides 将命令行样式参数转换为一份样式文件再叠加，与 .caption 的取值规则一致。
func applyOverrides(settings style.Settings, overrides map[string]string) (style.Settings, error) {
	if len(overrides) == 0 {
		return settings, nil
	}
	var b strings.Builder
	b.WriteString("caption {\n")
	for _, name := range styleFlags {
		value, ok := overrides[name]
		if !ok {
			continue
		}
		switch name {
		case "text", "font-family":
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}
	b.WriteString("}\n")

	doc, err := dsl.ParseString(b.String())
	if err != nil {
		return settings, fmt.Errorf("命令行样式参数无效: %w", err)
	}
	out, err := style.Apply(doc, settings)
	if err != nil {
		return settings, fmt.Errorf("命令行样式参数无效: %w", err)
	}
	return out, nil
}

func loadImageFile(sess *session.Session, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("无法打开背景图片 %s: %w", path, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("读取背景图片信息失败: %w", err)
	}
	return sess.LoadImage(filepath.Base(path), file, info.Size(), imageContentType(path))
}

// imageContentType 按扩展名推断图片类型；无法识别时返回空串，由会话嗅探内容。
func imageContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	}
	return mime.TypeByExtension(ext)
}

// previewWriter 返回把预览画布写入 path 的回调；path 为空时只记录错误。
func previewWriter(path string) func(img *image.RGBA, err error) {
	return func(img *image.RGBA, err error) {
		if err != nil {
			log.Printf("预览渲染失败: %v", err)
			return
		}
		if path == "" {
			return
		}
		if err := imaging.Save(img, path); err != nil {
			log.Printf("写入预览失败: %v", err)
		}
	}
}

func reportWarnings(sess *session.Session, data any) {
	settings := sess.Settings()
	if settings.OverSoftLimit() {
		log.Printf("字幕文本共 %d 个字符，超过建议上限 %d", settings.CharCount(), style.SoftCharLimit)
	}
	for _, path := range binding.Unresolved(settings.Text, data) {
		log.Printf("未找到绑定数据 ${%s}", path)
	}
	if res := sess.Layout(); res != nil {
		for i, ln := range res.Lines {
			if ln.Overflow {
				log.Printf("第 %d 行宽度 %.0fpx 超出画布宽度 %dpx", i+1, ln.Width, res.CanvasWidth)
			}
		}
	}
}

func export(sess *session.Session, cfg config.Config, opts cliOptions) error {
	exp, err := sess.Export()
	if err != nil {
		return err
	}
	path := opts.output
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
		if err := os.WriteFile(path, exp.PNG, 0o644); err != nil {
			return fmt.Errorf("写入 PNG 文件失败: %w", err)
		}
	} else {
		dir := opts.outDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		if path, err = exp.Save(dir); err != nil {
			return err
		}
	}
	fmt.Printf("已导出字幕图片：%s（%dx%d）\n", path, exp.Size.X, exp.Size.Y)
	return nil
}

func writeDebug(d layout.Debug, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(d, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
