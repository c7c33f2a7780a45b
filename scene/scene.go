// Package scene loads text-behind-image scene files: the source photo, an
// optional pre-made foreground cutout, the preview size the layers were laid
// out against, and the text layers themselves.
package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ByLCY/textbehind/composite"
	"github.com/ByLCY/textbehind/layer"
)

// ErrUnknownProperty 表示场景级属性名无法识别。
var ErrUnknownProperty = errors.New("unknown scene property")

// 场景级属性
const (
	keyImage      = "image"
	keyForeground = "foreground"
	keyPreview    = "preview"
)

// Document is a parsed scene. Relative paths resolve against Dir.
type Document struct {
	File *File
	Dir  string
}

// Parse parses a scene from r; relative paths resolve against the working directory.
func Parse(r io.Reader) (*Document, error) {
	return parse("", r, "")
}

// ParseString parses a scene held in memory.
func ParseString(input string) (*Document, error) {
	return Parse(strings.NewReader(input))
}

// ParseFile 读取并解析场景文件，相对路径以文件所在目录为基准。
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(path, f, filepath.Dir(path))
}

func parse(filename string, r io.Reader, dir string) (*Document, error) {
	file, err := parseFile(filename, r)
	if err != nil {
		return nil, err
	}
	doc := &Document{File: file, Dir: dir}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// validate 在解析阶段检查属性名，错误带上出错行的位置。
func (d *Document) validate() error {
	for _, st := range d.File.Statements {
		switch {
		case st.Property != nil:
			p := st.Property
			switch normalizeKey(p.Key) {
			case keyImage, keyForeground:
			case keyPreview:
				if _, err := parseSize(p.Value.Text()); err != nil {
					return fmt.Errorf("%s: %w", p.Pos, err)
				}
			default:
				return fmt.Errorf("%s: %w: %q", p.Pos, ErrUnknownProperty, p.Key)
			}
		case st.Layer != nil:
			for _, p := range st.Layer.Properties {
				if _, err := layer.ParseUpdate(p.Key, placeholderFor(p)); err != nil {
					return fmt.Errorf("%s: %w", p.Pos, err)
				}
			}
		}
	}
	return nil
}

// Name returns the scene's optional name.
func (d *Document) Name() string { return string(d.File.Name) }

// ImagePath returns the source photo path, or "" when the scene has none.
func (d *Document) ImagePath() string { return d.path(keyImage) }

// ForegroundPath returns the pre-made cutout path, or "" when separation should run.
func (d *Document) ForegroundPath() string { return d.path(keyForeground) }

// PreviewSize 返回图层排版时的预览尺寸；未声明时返回零值，导出使用默认 1000x600。
func (d *Document) PreviewSize() composite.Size {
	p := d.property(keyPreview)
	if p == nil {
		return composite.Size{}
	}
	size, _ := parseSize(p.Value.Text())
	return size
}

// LayerCount returns the number of layer blocks.
func (d *Document) LayerCount() int {
	n := 0
	for _, st := range d.File.Statements {
		if st.Layer != nil {
			n++
		}
	}
	return n
}

// Updates 把每个 layer 块编译成一组类型化修改，字符串值中的 ${key} 先用 vars 替换。
func (d *Document) Updates(vars map[string]any) ([][]layer.Update, error) {
	var out [][]layer.Update
	for _, st := range d.File.Statements {
		if st.Layer == nil {
			continue
		}
		updates := make([]layer.Update, 0, len(st.Layer.Properties))
		for _, p := range st.Layer.Properties {
			value := p.Value.Text()
			if p.Value.Quoted() {
				value = Interpolate(value, vars)
			}
			u, err := layer.ParseUpdate(p.Key, value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Pos, err)
			}
			updates = append(updates, u)
		}
		out = append(out, updates)
	}
	return out, nil
}

// Apply appends one layer per block to store. Every block is compiled before
// the store is touched, so a bad value leaves the store unchanged.
func (d *Document) Apply(store *layer.Store, vars map[string]any) ([]layer.TextLayer, error) {
	compiled, err := d.Updates(vars)
	if err != nil {
		return nil, err
	}
	added := make([]layer.TextLayer, 0, len(compiled))
	for _, updates := range compiled {
		l := store.Add()
		store.Update(l.ID, updates...)
		l, _ = store.Get(l.ID)
		added = append(added, l)
	}
	return added, nil
}

func (d *Document) property(key string) *Property {
	var found *Property
	for _, st := range d.File.Statements {
		if st.Property != nil && normalizeKey(st.Property.Key) == key {
			found = st.Property
		}
	}
	return found
}

func (d *Document) path(key string) string {
	p := d.property(key)
	if p == nil {
		return ""
	}
	v := p.Value.Text()
	if v == "" || filepath.IsAbs(v) || d.Dir == "" {
		return v
	}
	return filepath.Join(d.Dir, v)
}

func parseSize(s string) (composite.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return composite.Size{}, fmt.Errorf("preview size %q: want WIDTH x HEIGHT", s)
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return composite.Size{}, fmt.Errorf("preview width: %w", err)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return composite.Size{}, fmt.Errorf("preview height: %w", err)
	}
	if width <= 0 || height <= 0 {
		return composite.Size{}, fmt.Errorf("preview size %q must be positive", s)
	}
	return composite.Size{Width: width, Height: height}, nil
}

// placeholderFor 返回只用于校验属性名的值：含占位符的字符串要等到 Apply 时才能确定。
func placeholderFor(p *Property) string {
	v := p.Value.Text()
	if p.Value.Quoted() && exprPattern.MatchString(v) {
		if _, err := layer.ParseUpdate(p.Key, "0"); err == nil {
			return "0"
		}
	}
	return v
}

func normalizeKey(k string) string { return strings.ToLower(strings.TrimSpace(k)) }
