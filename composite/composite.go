package composite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/textbehind/layer"
	"github.com/ByLCY/textbehind/renderer"
)

// FileName 是导出文件的固定名称。
const FileName = "text-behind-image.png"

// 预览容器尺寸未知时使用的默认值。
const (
	DefaultPreviewWidth  = 1000
	DefaultPreviewHeight = 600
)

var (
	// ErrNoSource 表示尚未加载原图。
	ErrNoSource = errors.New("composite: 没有可导出的原图")
	// ErrNoPainter 表示缺少文字绘制后端（光栅上下文不可用）。
	ErrNoPainter = errors.New("composite: 缺少文字绘制后端")
	// ErrBusy 表示同一引擎上已有导出在进行。
	ErrBusy = errors.New("composite: 已有导出正在进行")
	// ErrDecodeSource 表示原图解码失败。
	ErrDecodeSource = errors.New("composite: 原图解码失败")
)

// Size 记录预览容器最近一次的尺寸；任一维度 <= 0 视为未知。
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Input 是一次导出所需的全部数据。
type Input struct {
	Source     []byte
	Foreground []byte
	Layers     []layer.TextLayer
	Preview    Size
}

// Result 是导出结果。ForegroundErr 非空表示前景解码失败，导出已退化为只有原图与文字。
type Result struct {
	PNG           []byte
	Width         int
	Height        int
	Scale         float64
	ForegroundErr error
}

// Engine 在全分辨率光栅画布上重新合成：原图 → 文字图层 → 前景抠图。
type Engine struct {
	painter renderer.TextPainter
	busy    atomic.Bool
}

// NewEngine creates an export engine that paints text with p.
func NewEngine(p renderer.TextPainter) *Engine {
	return &Engine{painter: p}
}

// ScaleFactor 取两个方向缩放比的较大值，保证导出时文字不会因为预览容器长宽比不同而变形。
func ScaleFactor(w, h int, preview Size) float64 {
	pw, ph := preview.Width, preview.Height
	if pw <= 0 {
		pw = DefaultPreviewWidth
	}
	if ph <= 0 {
		ph = DefaultPreviewHeight
	}
	sx := float64(w) / pw
	sy := float64(h) / ph
	if sx > sy {
		return sx
	}
	return sy
}

// Export 依次执行：解码原图 → 绘制底图与全部文字 → 解码并绘制前景 → 编码 PNG。
// 每一步完成后才进入下一步；任何阶段的错误都会返回给调用方。
func (e *Engine) Export(ctx context.Context, in Input) (Result, error) {
	if e == nil || e.painter == nil {
		return Result{}, ErrNoPainter
	}
	if len(in.Source) == 0 {
		return Result{}, ErrNoSource
	}
	if !e.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer e.busy.Store(false)

	src, _, err := image.Decode(bytes.NewReader(in.Source))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecodeSource, err)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return Result{}, fmt.Errorf("%w: 图像尺寸为 0", ErrDecodeSource)
	}

	// 清空画布并铺满原图
	surface := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(surface, surface.Bounds(), src, src.Bounds().Min, xdraw.Src)

	scale := ScaleFactor(w, h, in.Preview)
	if len(in.Layers) > 0 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, err := e.painter.Paint(ctx, renderer.Frame{Width: w, Height: h, Scale: scale, Layers: in.Layers})
		if err != nil {
			return Result{}, fmt.Errorf("绘制文字图层失败: %w", err)
		}
		xdraw.Draw(surface, surface.Bounds(), text, text.Bounds().Min, xdraw.Over)
	}

	res := Result{Width: w, Height: h, Scale: scale}
	if len(in.Foreground) > 0 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := drawForeground(surface, in.Foreground); err != nil {
			res.ForegroundErr = err
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, surface); err != nil {
		return Result{}, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	res.PNG = buf.Bytes()
	return res, nil
}

// Save 导出并把结果写入 dir/text-behind-image.png，返回写入的路径。
func (e *Engine) Save(ctx context.Context, in Input, dir string) (string, Result, error) {
	res, err := e.Export(ctx, in)
	if err != nil {
		return "", res, err
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName)
	if err := WriteFile(path, res.PNG); err != nil {
		return "", res, err
	}
	return path, res, nil
}

// WriteFile 写出 PNG 数据，必要时创建目录。
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}

// drawForeground 将抠图结果拉伸铺满画布后叠加，透明区域保留下方的文字。
func drawForeground(surface *image.RGBA, data []byte) error {
	fg, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("前景解码失败: %w", err)
	}
	if fg.Bounds().Eq(surface.Bounds()) {
		xdraw.Draw(surface, surface.Bounds(), fg, fg.Bounds().Min, xdraw.Over)
		return nil
	}
	xdraw.CatmullRom.Scale(surface, surface.Bounds(), fg, fg.Bounds(), xdraw.Over, nil)
	return nil
}
