package renderer

import (
	"context"
	"image"

	"github.com/ByLCY/textbehind/layer"
)

// Frame 描述一次全分辨率文字绘制：画布像素尺寸、字号缩放系数与按绘制顺序排列的图层。
type Frame struct {
	Width  int
	Height int
	Scale  float64
	Layers []layer.TextLayer
}

// TextPainter 将所有文字图层按顺序绘制到一张透明画布上并返回。
// 返回图像的尺寸必须与 Frame 一致。
type TextPainter interface {
	Paint(ctx context.Context, frame Frame) (*image.RGBA, error)
}
