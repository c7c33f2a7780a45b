package canvasrenderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/mazznoer/csscolorparser"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/textbehind/fonts"
	"github.com/ByLCY/textbehind/layer"
	"github.com/ByLCY/textbehind/renderer"
)

// 画布以毫米为单位；以 1 dot/mm 光栅化，使 1mm 恰好对应 1 像素。
const dotsPerMM = 1.0

// mmPerPt 用于把像素（= mm）字号换算成 canvas 字体面需要的 pt。
const mmPerPt = 25.4 / 72

// Renderer draws text layers via github.com/tdewolff/canvas.
type Renderer struct {
	fonts *fonts.Registry

	fontMu       sync.Mutex
	fontFamilies map[string]*fontFamilyEntry
}

var _ renderer.TextPainter = (*Renderer)(nil)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// NewRenderer creates a canvas-based painter resolving fonts through reg.
// A nil registry uses the built-in fonts only.
func NewRenderer(reg *fonts.Registry) *Renderer {
	if reg == nil {
		reg = fonts.NewRegistry()
	}
	return &Renderer{
		fonts:        reg,
		fontFamilies: map[string]*fontFamilyEntry{},
	}
}

// Paint draws every layer, in order, onto a transparent Width×Height surface.
func (r *Renderer) Paint(ctx context.Context, frame renderer.Frame) (*image.RGBA, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效: %dx%d", frame.Width, frame.Height)
	}
	c := canvas.New(float64(frame.Width), float64(frame.Height))
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV) // 与像素坐标一致：左上角为原点，y 轴向下

	for _, l := range frame.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.drawLayer(cctx, l, frame); err != nil {
			return nil, fmt.Errorf("绘制图层 %d 失败: %w", l.ID, err)
		}
	}

	img := rasterizer.Draw(c, canvas.DPMM(dotsPerMM), canvas.DefaultColorSpace)
	return fitSurface(img, frame.Width, frame.Height), nil
}

func (r *Renderer) drawLayer(cctx *canvas.Context, l layer.TextLayer, frame renderer.Frame) error {
	if strings.TrimSpace(l.Text) == "" {
		return nil
	}
	opacity := clamp01(l.Opacity)
	sizePx := l.FontSize * frame.Scale
	if opacity == 0 || sizePx <= 0 {
		return nil
	}

	col, err := parseColor(l.Color, opacity)
	if err != nil {
		return err
	}
	face, err := r.fontFace(l.FontFamily, l.FontWeight, sizePx/mmPerPt, col)
	if err != nil {
		return err
	}

	cctx.Push()
	defer cctx.Pop()
	cctx.SetView(toCanvasMatrix(renderer.LayerTransform(l, frame.Width, frame.Height)))

	// 水平居中由 canvas.Center 完成；垂直居中把基线下移半个 (ascent - descent)，
	// 使字形框的中线落在原点上。
	metrics := face.Metrics()
	baseline := (metrics.Ascent - metrics.Descent) / 2
	cctx.DrawText(0, baseline, canvas.NewTextLine(face, l.Text, canvas.Center))
	return nil
}

func (r *Renderer) fontFace(family string, weight int, sizePt float64, col color.Color) (*canvas.FontFace, error) {
	fam, style, err := r.ensureFontFamily(family, weight)
	if err != nil {
		return nil, err
	}
	return fam.Face(sizePt, col, style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(family string, weight int) (*canvas.FontFamily, canvas.FontStyle, error) {
	data, resolved, resolvedWeight := r.fonts.Resolve(family, weight)
	key := fontCacheKey(resolved, resolvedWeight)

	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := weightToStyle(weight)
	fam := canvas.NewFontFamily(key)
	if err := fam.LoadFont(data, 0, style); err != nil {
		return nil, canvas.FontRegular, fmt.Errorf("加载字体 %s 失败: %w", key, err)
	}
	r.fontFamilies[key] = &fontFamilyEntry{family: fam, style: style}
	return fam, style, nil
}

// weightToStyle 将 CSS 数值字重映射到 canvas 的字体样式。
func weightToStyle(weight int) canvas.FontStyle {
	switch {
	case weight >= 900:
		return canvas.FontBlack
	case weight >= 800:
		return canvas.FontExtraBold
	case weight >= 700:
		return canvas.FontBold
	case weight >= 600:
		return canvas.FontSemiBold
	case weight >= 500:
		return canvas.FontMedium
	case weight > 0 && weight <= 300:
		return canvas.FontLight
	default:
		return canvas.FontRegular
	}
}

func fontCacheKey(family string, weight int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(family), weight)
}

// parseColor 解析 CSS 颜色字符串，并把图层不透明度乘到 alpha 上。
func parseColor(s string, opacity float64) (color.Color, error) {
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("无法解析颜色 %q: %w", s, err)
	}
	return canvas.RGBA(c.R, c.G, c.B, c.A*opacity), nil
}

func toCanvasMatrix(m renderer.Matrix) canvas.Matrix {
	return canvas.Matrix{
		{m.A, m.B, m.C},
		{m.D, m.E, m.F},
	}
}

// fitSurface 保证返回图像与目标尺寸一致且原点为 (0,0)。
func fitSurface(img *image.RGBA, w, h int) *image.RGBA {
	if img != nil && img.Bounds() == image.Rect(0, 0, w, h) {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if img != nil {
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
