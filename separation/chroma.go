package separation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/mazznoer/csscolorparser"
	xdraw "golang.org/x/image/draw"
)

// ChromaKey is an in-process separator for studio shots against a flat
// backdrop: pixels within Tolerance of Key become transparent.
// An empty Key samples the top-left pixel.
type ChromaKey struct {
	Key       string  // CSS colour
	Tolerance float64 // euclidean RGB distance in [0, sqrt(3)], channels normalised to [0, 1]
	Softness  float64 // band above Tolerance that fades alpha linearly instead of cutting
}

func (c ChromaKey) Separate(ctx context.Context, src []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("chroma key: decode: %w", err)
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)

	key, err := c.keyColor(out)
	if err != nil {
		return nil, err
	}
	for y := 0; y < out.Rect.Dy(); y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < out.Rect.Dx(); x++ {
			i := out.PixOffset(x, y)
			px := out.Pix[i : i+4 : i+4]
			d := distance(px, key)
			px[3] = uint8(float64(px[3]) * c.keep(d))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("chroma key: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (c ChromaKey) keyColor(img *image.NRGBA) ([3]float64, error) {
	if c.Key == "" {
		p := img.NRGBAAt(0, 0)
		return [3]float64{float64(p.R) / 255, float64(p.G) / 255, float64(p.B) / 255}, nil
	}
	k, err := csscolorparser.Parse(c.Key)
	if err != nil {
		return [3]float64{}, fmt.Errorf("chroma key: colour %q: %w", c.Key, err)
	}
	return [3]float64{k.R, k.G, k.B}, nil
}

// keep 返回保留的 alpha 比例：容差内为 0，柔化带内线性过渡，其余为 1。
func (c ChromaKey) keep(d float64) float64 {
	switch {
	case d <= c.Tolerance:
		return 0
	case c.Softness <= 0 || d >= c.Tolerance+c.Softness:
		return 1
	default:
		return (d - c.Tolerance) / c.Softness
	}
}

func distance(px []uint8, key [3]float64) float64 {
	dr := float64(px[0])/255 - key[0]
	dg := float64(px[1])/255 - key[1]
	db := float64(px[2])/255 - key[2]
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
