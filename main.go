package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/ByLCY/textbehind/composite"
	"github.com/ByLCY/textbehind/config"
	"github.com/ByLCY/textbehind/editor"
	"github.com/ByLCY/textbehind/fonts"
	"github.com/ByLCY/textbehind/layer"
	canvasrenderer "github.com/ByLCY/textbehind/renderer/canvas"
	"github.com/ByLCY/textbehind/scene"
	"github.com/ByLCY/textbehind/tui"
)

type options struct {
	image      string
	scene      string
	foreground string
	out        string
	data       string
	vars       varFlags
	edit       bool
	watch      bool
}

func main() {
	if err := config.LoadEnvFile(); err != nil {
		logrus.WithError(err).Warn("忽略 .env 文件")
	}

	var opts options
	flag.StringVar(&opts.image, "image", "", "原图路径（JPEG 或 PNG），覆盖场景文件中的 image")
	flag.StringVar(&opts.scene, "scene", "", "场景文件路径")
	flag.StringVar(&opts.foreground, "foreground", "", "已有的前景抠图 PNG，提供时跳过抠图")
	flag.StringVar(&opts.out, "out", "", "输出目录或 .png 文件路径，默认 <out_dir>/"+composite.FileName)
	flag.StringVar(&opts.data, "data", "", "绑定到场景 ${...} 的 JSON 数据")
	flag.Var(&opts.vars, "var", "场景变量 key=value，可重复")
	flag.BoolVar(&opts.edit, "edit", false, "打开交互式编辑器")
	flag.BoolVar(&opts.watch, "watch", false, "场景文件变化时重新导出")
	configPath := flag.String("config", "", "YAML 配置文件")
	logLevel := flag.String("loglevel", "", "日志级别 (debug, info, warn, error)，覆盖配置")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid log level: %v", err)
		}
	}
	logrus.SetLevel(cfg.Level())
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Fatal("生成失败")
	}
}

// run 串联配置、场景、抠图与导出。
func run(ctx context.Context, cfg config.Config, opts options) error {
	if opts.edit {
		// 终端界面占用标准输出，日志改写到文件
		logFile, err := tea.LogToFile("textbehind.log", "")
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		defer logFile.Close()
		logrus.SetOutput(logFile)
	}

	vars, err := mergeVars(cfg.Vars, opts.data, opts.vars)
	if err != nil {
		return err
	}

	reg := fonts.NewRegistry()
	if err := cfg.RegisterFonts(reg); err != nil {
		return err
	}
	sep, err := cfg.NewSeparator()
	if err != nil {
		return err
	}
	store := layer.NewStore()
	ed := editor.New(editor.Options{
		Separator:           sep,
		Engine:              composite.NewEngine(canvasrenderer.NewRenderer(reg)),
		Store:               store,
		ResetLayersOnUpload: cfg.ResetLayersOnUpload,
		Logger:              logrus.StandardLogger(),
	})

	var doc *scene.Document
	if opts.scene != "" {
		if doc, err = scene.ParseFile(opts.scene); err != nil {
			return fmt.Errorf("解析场景失败: %w", err)
		}
	}

	imagePath, fgPath := opts.image, opts.foreground
	preview := cfg.Preview
	if doc != nil {
		if imagePath == "" {
			imagePath = doc.ImagePath()
		}
		if fgPath == "" {
			fgPath = doc.ForegroundPath()
		}
		if size := doc.PreviewSize(); size.Width > 0 {
			preview = size
		}
	}
	if imagePath == "" {
		return fmt.Errorf("需要 -image 或场景文件中的 image")
	}
	ed.SetPreviewSize(preview.Width, preview.Height)

	if err := upload(ctx, ed, imagePath, fgPath); err != nil {
		return err
	}
	if doc != nil {
		if _, err := doc.Apply(store, vars); err != nil {
			return fmt.Errorf("应用场景失败: %w", err)
		}
	}

	if opts.edit {
		return tui.Run(ctx, ed, outDir(cfg, opts.out))
	}

	s, err := ed.Wait(ctx)
	if err != nil {
		return err
	}
	if s.Status == editor.StatusFailed {
		logrus.WithError(s.Err).Warn("抠图失败，导出的文字不会被前景遮挡")
	}
	path, err := export(ctx, ed, cfg, opts.out)
	if err != nil {
		return err
	}
	fmt.Printf("已生成图片：%s\n", path)

	if opts.watch && opts.scene != "" {
		return watch(ctx, ed, store, cfg, opts, vars)
	}
	return nil
}

func upload(ctx context.Context, ed *editor.Editor, imagePath, fgPath string) error {
	src, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("无法读取原图 %s: %w", imagePath, err)
	}
	if fgPath == "" {
		return ed.Upload(ctx, src)
	}
	fg, err := os.ReadFile(fgPath)
	if err != nil {
		return fmt.Errorf("无法读取前景 %s: %w", fgPath, err)
	}
	return ed.Load(src, fg)
}

// export 写出合成图；-out 以 .png 结尾时按文件路径写，否则视为目录。
func export(ctx context.Context, ed *editor.Editor, cfg config.Config, out string) (string, error) {
	if strings.EqualFold(filepath.Ext(out), ".png") {
		res, err := ed.Export(ctx)
		if err != nil {
			return "", err
		}
		if err := composite.WriteFile(out, res.PNG); err != nil {
			return "", err
		}
		return out, nil
	}
	return ed.Save(ctx, outDir(cfg, out))
}

// watch 在场景文件变化时重新应用图层并导出，直到 ctx 结束。
func watch(ctx context.Context, ed *editor.Editor, store *layer.Store, cfg config.Config, opts options, vars map[string]any) error {
	w, err := scene.NewWatcher(opts.scene)
	if err != nil {
		return fmt.Errorf("监听场景文件失败: %w", err)
	}
	defer w.Close()
	logrus.WithField("scene", opts.scene).Info("watching scene for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("scene watcher error")
		case _, ok := <-w.Events:
			if !ok {
				return nil
			}
			doc, err := scene.ParseFile(opts.scene)
			if err != nil {
				logrus.WithError(err).Error("scene reload failed")
				continue
			}
			store.Reset()
			if _, err := doc.Apply(store, vars); err != nil {
				logrus.WithError(err).Error("scene reload failed")
				continue
			}
			if size := doc.PreviewSize(); size.Width > 0 {
				ed.SetPreviewSize(size.Width, size.Height)
			}
			path, err := export(ctx, ed, cfg, opts.out)
			if err != nil {
				logrus.WithError(err).Error("re-export failed")
				continue
			}
			logrus.WithFields(logrus.Fields{"path": path, "layers": store.Len()}).Info("scene re-rendered")
		}
	}
}

func outDir(cfg config.Config, out string) string {
	if out != "" && !strings.EqualFold(filepath.Ext(out), ".png") {
		return out
	}
	return cfg.OutDir
}

// mergeVars 合并场景变量：配置文件 < -data JSON < -var。
func mergeVars(base map[string]any, dataJSON string, flags varFlags) (map[string]any, error) {
	vars := make(map[string]any, len(base))
	for k, v := range base {
		vars[k] = v
	}
	if dataJSON != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
		}
		for k, v := range data {
			vars[k] = v
		}
	}
	for _, kv := range flags {
		k, v, _ := strings.Cut(kv, "=")
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}

// varFlags collects repeated -var key=value flags.
type varFlags []string

func (v *varFlags) String() string { return strings.Join(*v, ",") }

func (v *varFlags) Set(s string) error {
	if !strings.Contains(s, "=") {
		return fmt.Errorf("want key=value, got %q", s)
	}
	*v = append(*v, s)
	return nil
}
