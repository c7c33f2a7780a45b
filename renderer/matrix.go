package renderer

import (
	"math"

	"github.com/ByLCY/textbehind/layer"
)

// Matrix is a 2D affine transform in row-major order:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
//
// Pixel space is y-down, so a positive rotation turns clockwise on screen.
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

func Identity() Matrix { return Matrix{A: 1, E: 1} }

func Translate(x, y float64) Matrix { return Matrix{A: 1, C: x, E: 1, F: y} }

// Rotate creates a rotation matrix (angle in degrees).
func Rotate(deg float64) Matrix {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Matrix{A: cos, B: -sin, D: sin, E: cos}
}

// Tilt approximates the preview's rotateX/rotateY perspective with a 2D
// shear/scale. Both angles are negated so the raster leans the same way the
// preview does.
func Tilt(tiltX, tiltY float64) Matrix {
	tx := -tiltX * math.Pi / 180
	ty := -tiltY * math.Pi / 180
	return Matrix{
		A: math.Cos(ty), B: -math.Sin(ty),
		D: math.Sin(tx), E: math.Cos(tx),
	}
}

// Multiply returns m * other; other is applied first.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

func (m Matrix) TransformPoint(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// Origin returns the pixel position of a layer's anchor on a w×h surface.
// (0,0) in layer space is the centre; positive top moves up.
func Origin(l layer.TextLayer, w, h int) (float64, float64) {
	return float64(w) * (l.Left + 50) / 100, float64(h) * (50 - l.Top) / 100
}

// LayerTransform composes translate → tilt → rotate for one layer, matching
// the order the export draws in.
func LayerTransform(l layer.TextLayer, w, h int) Matrix {
	x, y := Origin(l, w, h)
	return Translate(x, y).Multiply(Tilt(l.TiltX, l.TiltY)).Multiply(Rotate(l.Rotation))
}
