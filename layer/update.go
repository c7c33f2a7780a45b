package layer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownAttribute is returned by ParseUpdate for names outside the TextLayer schema.
var ErrUnknownAttribute = errors.New("unknown layer attribute")

// Update changes exactly one field of a TextLayer. The set of variants is closed;
// the id is never updatable.
type Update interface {
	apply(l *TextLayer)
	// Attribute returns the camelCase attribute name the update targets.
	Attribute() string
}

type (
	SetText        string
	SetFontFamily  string
	SetTop         float64
	SetLeft        float64
	SetColor       string
	SetFontSize    float64
	SetFontWeight  int
	SetOpacity     float64
	SetShadowColor string
	SetShadowSize  float64
	SetRotation    float64
	SetTiltX       float64
	SetTiltY       float64
)

func (u SetText) apply(l *TextLayer)        { l.Text = string(u) }
func (u SetFontFamily) apply(l *TextLayer)  { l.FontFamily = string(u) }
func (u SetTop) apply(l *TextLayer)         { l.Top = float64(u) }
func (u SetLeft) apply(l *TextLayer)        { l.Left = float64(u) }
func (u SetColor) apply(l *TextLayer)       { l.Color = string(u) }
func (u SetFontSize) apply(l *TextLayer)    { l.FontSize = float64(u) }
func (u SetFontWeight) apply(l *TextLayer)  { l.FontWeight = int(u) }
func (u SetOpacity) apply(l *TextLayer)     { l.Opacity = float64(u) }
func (u SetShadowColor) apply(l *TextLayer) { l.ShadowColor = string(u) }
func (u SetShadowSize) apply(l *TextLayer)  { l.ShadowSize = float64(u) }
func (u SetRotation) apply(l *TextLayer)    { l.Rotation = float64(u) }
func (u SetTiltX) apply(l *TextLayer)       { l.TiltX = float64(u) }
func (u SetTiltY) apply(l *TextLayer)       { l.TiltY = float64(u) }

func (SetText) Attribute() string        { return "text" }
func (SetFontFamily) Attribute() string  { return "fontFamily" }
func (SetTop) Attribute() string         { return "top" }
func (SetLeft) Attribute() string        { return "left" }
func (SetColor) Attribute() string       { return "color" }
func (SetFontSize) Attribute() string    { return "fontSize" }
func (SetFontWeight) Attribute() string  { return "fontWeight" }
func (SetOpacity) Attribute() string     { return "opacity" }
func (SetShadowColor) Attribute() string { return "shadowColor" }
func (SetShadowSize) Attribute() string  { return "shadowSize" }
func (SetRotation) Attribute() string    { return "rotation" }
func (SetTiltX) Attribute() string       { return "tiltX" }
func (SetTiltY) Attribute() string       { return "tiltY" }

// Attributes lists the editable attribute names in display order.
var Attributes = []string{
	"text", "fontFamily", "top", "left", "color", "fontSize", "fontWeight",
	"opacity", "shadowColor", "shadowSize", "rotation", "tiltX", "tiltY",
}

// Apply returns a copy of l with every update applied in order.
func Apply(l TextLayer, updates ...Update) TextLayer {
	for _, u := range updates {
		if u != nil {
			u.apply(&l)
		}
	}
	return l
}

// ParseUpdate converts a string attribute/value pair into a typed Update.
// Names are accepted in camelCase (fontSize) or kebab-case (font-size).
func ParseUpdate(name, value string) (Update, error) {
	key := normalizeName(name)
	switch key {
	case "text":
		return SetText(value), nil
	case "fontfamily":
		return SetFontFamily(value), nil
	case "color":
		return SetColor(value), nil
	case "shadowcolor":
		return SetShadowColor(value), nil
	case "fontweight":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		return SetFontWeight(n), nil
	}

	ctor, ok := numericUpdates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", name, err)
	}
	return ctor(f), nil
}

// Value returns the current value of the named attribute formatted as text.
func Value(l TextLayer, name string) (string, error) {
	switch normalizeName(name) {
	case "text":
		return l.Text, nil
	case "fontfamily":
		return l.FontFamily, nil
	case "top":
		return formatFloat(l.Top), nil
	case "left":
		return formatFloat(l.Left), nil
	case "color":
		return l.Color, nil
	case "fontsize":
		return formatFloat(l.FontSize), nil
	case "fontweight":
		return strconv.Itoa(l.FontWeight), nil
	case "opacity":
		return formatFloat(l.Opacity), nil
	case "shadowcolor":
		return l.ShadowColor, nil
	case "shadowsize":
		return formatFloat(l.ShadowSize), nil
	case "rotation":
		return formatFloat(l.Rotation), nil
	case "tiltx":
		return formatFloat(l.TiltX), nil
	case "tilty":
		return formatFloat(l.TiltY), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
}

var numericUpdates = map[string]func(float64) Update{
	"top":        func(f float64) Update { return SetTop(f) },
	"left":       func(f float64) Update { return SetLeft(f) },
	"fontsize":   func(f float64) Update { return SetFontSize(f) },
	"opacity":    func(f float64) Update { return SetOpacity(f) },
	"shadowsize": func(f float64) Update { return SetShadowSize(f) },
	"rotation":   func(f float64) Update { return SetRotation(f) },
	"tiltx":      func(f float64) Update { return SetTiltX(f) },
	"tilty":      func(f float64) Update { return SetTiltY(f) },
}

func normalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
