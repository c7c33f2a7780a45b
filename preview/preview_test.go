package preview

import (
	"reflect"
	"testing"

	"github.com/ByLCY/textbehind/layer"
)

func TestScaleFactor(t *testing.T) {
	cases := []struct {
		width, want float64
	}{
		{1000, 1},
		{800, 0.8},
		{2000, 2},
		{0, 1},
		{-5, 1},
	}
	for _, tc := range cases {
		if got := ScaleFactor(tc.width); got != tc.want {
			t.Fatalf("ScaleFactor(%g): got %g want %g", tc.width, got, tc.want)
		}
	}
}

func TestRenderDefaultLayer(t *testing.T) {
	s := Render(layer.Default(1), 0.8)
	if s.Top != 50 || s.Left != 50 {
		t.Fatalf("anchor: got top=%g left=%g", s.Top, s.Left)
	}
	if s.FontSize != 160 {
		t.Fatalf("font size: got %g want 160", s.FontSize)
	}
	want := "translate(-50%, -50%) rotate(0deg) perspective(1000px) rotateX(0deg) rotateY(0deg)"
	if got := s.TransformString(); got != want {
		t.Fatalf("transform:\n got=%q\nwant=%q", got, want)
	}
	if s.Color != "white" || s.FontWeight != 800 || s.FontFamily != "Inter" || s.Opacity != 1 {
		t.Fatalf("pass-through attributes changed: %#v", s)
	}
}

func TestRenderCentreRelativePosition(t *testing.T) {
	l := layer.Default(1)
	l.Top = 20
	l.Left = -10
	l.Rotation = 15
	l.TiltX = -30
	l.TiltY = 12.5
	s := Render(l, 1)
	if s.Top != 30 {
		t.Fatalf("top: got %g want 30 (positive top moves up)", s.Top)
	}
	if s.Left != 40 {
		t.Fatalf("left: got %g want 40", s.Left)
	}
	want := "translate(-50%, -50%) rotate(15deg) perspective(1000px) rotateX(-30deg) rotateY(12.5deg)"
	if got := s.TransformString(); got != want {
		t.Fatalf("transform order:\n got=%q\nwant=%q", got, want)
	}
}

func TestRenderIsPure(t *testing.T) {
	l := layer.Default(3)
	l.Text = "HELLO"
	l.Rotation = 33
	a := Render(l, 0.5)
	b := Render(l, 0.5)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Render not deterministic:\n%#v\n%#v", a, b)
	}
	if a.CSS() != b.CSS() {
		t.Fatalf("CSS not deterministic")
	}
}

func TestCSS(t *testing.T) {
	l := layer.Default(1)
	l.FontFamily = "Open Sans"
	got := Render(l, 0.5).CSS()
	want := `position: absolute; top: 50%; left: 50%; transform: translate(-50%, -50%) rotate(0deg) perspective(1000px) rotateX(0deg) rotateY(0deg); color: white; text-align: center; font-size: 100px; font-weight: 800; font-family: "Open Sans"; opacity: 1; transform-style: preserve-3d;`
	if got != want {
		t.Fatalf("css:\n got=%s\nwant=%s", got, want)
	}
}

func TestRenderAll(t *testing.T) {
	layers := []layer.TextLayer{layer.Default(1), layer.Default(2)}
	layers[1].FontSize = 100
	styles := RenderAll(layers, 500)
	if len(styles) != 2 {
		t.Fatalf("expected 2 styles, got %d", len(styles))
	}
	if styles[0].FontSize != 100 || styles[1].FontSize != 50 {
		t.Fatalf("font sizes: %g %g", styles[0].FontSize, styles[1].FontSize)
	}
}
