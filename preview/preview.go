// Package preview derives the on-screen style of a text layer for a scaled
// preview container. Everything here is a pure function of its inputs.
package preview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/textbehind/layer"
)

// DesignWidth is the reference container width that font sizes are authored against.
const DesignWidth = 1000

// PerspectiveDistance is the CSS perspective (px) applied between rotation and tilt.
const PerspectiveDistance = 1000

// Style is the positioned, transformed style of one layer inside the preview container.
type Style struct {
	Position       string        `json:"position"`
	Top            float64       `json:"top"`  // percent of container height
	Left           float64       `json:"left"` // percent of container width
	Transform      []TransformOp `json:"transform"`
	Color          string        `json:"color"`
	TextAlign      string        `json:"textAlign"`
	FontSize       float64       `json:"fontSize"` // px
	FontWeight     int           `json:"fontWeight"`
	FontFamily     string        `json:"fontFamily"`
	Opacity        float64       `json:"opacity"`
	TransformStyle string        `json:"transformStyle"`
}

// TransformOp is one CSS transform function, e.g. rotate(12deg).
type TransformOp struct {
	Func string   `json:"func"`
	Args []string `json:"args"`
}

func (op TransformOp) String() string {
	return op.Func + "(" + strings.Join(op.Args, ", ") + ")"
}

// ScaleFactor maps a container width to the design-space scale.
// A container that has not been measured yet (width <= 0) renders at scale 1.
func ScaleFactor(containerWidth float64) float64 {
	if containerWidth <= 0 {
		return 1
	}
	return containerWidth / DesignWidth
}

// Render projects a layer into its preview style.
// The transform order is fixed: translate, rotate, perspective, rotateX, rotateY.
func Render(l layer.TextLayer, scale float64) Style {
	return Style{
		Position: "absolute",
		Top:      50 - l.Top,
		Left:     l.Left + 50,
		Transform: []TransformOp{
			{Func: "translate", Args: []string{"-50%", "-50%"}},
			{Func: "rotate", Args: []string{deg(l.Rotation)}},
			{Func: "perspective", Args: []string{px(PerspectiveDistance)}},
			{Func: "rotateX", Args: []string{deg(l.TiltX)}},
			{Func: "rotateY", Args: []string{deg(l.TiltY)}},
		},
		Color:          l.Color,
		TextAlign:      "center",
		FontSize:       l.FontSize * scale,
		FontWeight:     l.FontWeight,
		FontFamily:     l.FontFamily,
		Opacity:        l.Opacity,
		TransformStyle: "preserve-3d",
	}
}

// RenderAll renders every layer of a snapshot for the given container width.
func RenderAll(layers []layer.TextLayer, containerWidth float64) []Style {
	scale := ScaleFactor(containerWidth)
	out := make([]Style, 0, len(layers))
	for _, l := range layers {
		out = append(out, Render(l, scale))
	}
	return out
}

// TransformString joins the transform functions in application order.
func (s Style) TransformString() string {
	parts := make([]string, 0, len(s.Transform))
	for _, op := range s.Transform {
		parts = append(parts, op.String())
	}
	return strings.Join(parts, " ")
}

// CSS serialises the style as an inline declaration list.
func (s Style) CSS() string {
	decls := []string{
		"position: " + s.Position,
		"top: " + pct(s.Top),
		"left: " + pct(s.Left),
		"transform: " + s.TransformString(),
		"color: " + s.Color,
		"text-align: " + s.TextAlign,
		"font-size: " + px(s.FontSize),
		"font-weight: " + strconv.Itoa(s.FontWeight),
		"font-family: " + quoteFamily(s.FontFamily),
		"opacity: " + num(s.Opacity),
		"transform-style: " + s.TransformStyle,
	}
	return strings.Join(decls, "; ") + ";"
}

func quoteFamily(f string) string {
	if strings.ContainsAny(f, " ,") {
		return fmt.Sprintf("%q", f)
	}
	return f
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
func deg(f float64) string { return num(f) + "deg" }
func px(f float64) string  { return num(f) + "px" }
func pct(f float64) string { return num(f) + "%" }
