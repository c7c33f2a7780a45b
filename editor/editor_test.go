package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ByLCY/textbehind/composite"
	"github.com/ByLCY/textbehind/layer"
	"github.com/ByLCY/textbehind/renderer"
	"github.com/ByLCY/textbehind/separation"
)

type blankPainter struct{}

func (blankPainter) Paint(_ context.Context, f renderer.Frame) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, f.Width, f.Height)), nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func pngOf(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newEditor(sep separation.Separator, reset bool) *Editor {
	return New(Options{
		Separator:           sep,
		Engine:              composite.NewEngine(blankPainter{}),
		ResetLayersOnUpload: reset,
		Logger:              quietLogger(),
	})
}

func waitSession(t *testing.T, e *Editor) Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := e.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return s
}

func TestUploadSeparatesForeground(t *testing.T) {
	src := pngOf(t, 4, 3, color.NRGBA{0, 0, 255, 255})
	cutout := pngOf(t, 4, 3, color.Transparent)
	release := make(chan struct{})
	e := newEditor(separation.Func(func(ctx context.Context, _ []byte) ([]byte, error) {
		<-release
		return cutout, nil
	}), false)

	if got := e.Session().Status; got != StatusIdle {
		t.Fatalf("initial status: %v", got)
	}
	if err := e.Upload(context.Background(), src); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if s := e.Session(); !s.Processing() || !s.HasImage() {
		t.Fatalf("expected processing with image, got %+v", s.Status)
	}
	close(release)

	s := waitSession(t, e)
	if s.Status != StatusReady || !bytes.Equal(s.Foreground, cutout) {
		t.Fatalf("status=%v foreground=%d bytes", s.Status, len(s.Foreground))
	}

	var seen []Status
	for len(seen) < 2 {
		select {
		case ev := <-e.Events():
			seen = append(seen, ev.Status)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", seen)
		}
	}
	if seen[0] != StatusProcessing || seen[1] != StatusReady {
		t.Fatalf("events: %v", seen)
	}
}

func TestSeparationFailureKeepsEditing(t *testing.T) {
	src := pngOf(t, 4, 4, color.White)
	var healthy atomic.Bool
	boom := errors.New("service unavailable")
	e := newEditor(separation.Func(func(_ context.Context, in []byte) ([]byte, error) {
		if !healthy.Load() {
			return nil, boom
		}
		return in, nil
	}), false)

	if err := e.Upload(context.Background(), src); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	s := waitSession(t, e)
	if s.Status != StatusFailed || !errors.Is(s.Err, boom) {
		t.Fatalf("status=%v err=%v", s.Status, s.Err)
	}

	l := e.AddLayer()
	if err := e.UpdateAttribute(l.ID, "text", "still editable"); err != nil {
		t.Fatalf("UpdateAttribute: %v", err)
	}
	if got := e.Layers()[0].Text; got != "still editable" {
		t.Fatalf("text: %q", got)
	}
	res, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("Export without foreground: %v", err)
	}
	if res.Width != 4 || res.Height != 4 {
		t.Fatalf("size: %dx%d", res.Width, res.Height)
	}

	healthy.Store(true)
	if err := e.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	s = waitSession(t, e)
	if s.Status != StatusReady || s.Err != nil {
		t.Fatalf("after retry: status=%v err=%v", s.Status, s.Err)
	}
	if s.Generation != 1 {
		t.Fatalf("retry must keep generation, got %d", s.Generation)
	}
}

func TestRetryRequiresFailure(t *testing.T) {
	e := newEditor(separation.Func(func(_ context.Context, in []byte) ([]byte, error) { return in, nil }), false)
	if err := e.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("idle: %v", err)
	}
	if err := e.Upload(context.Background(), pngOf(t, 2, 2, color.Black)); err != nil {
		t.Fatal(err)
	}
	waitSession(t, e)
	if err := e.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("ready: %v", err)
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	e := newEditor(separation.Func(func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, errors.New("cancelled")
	}), false)

	first := pngOf(t, 2, 2, color.Black)
	second := pngOf(t, 3, 3, color.White)
	if err := e.Upload(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if err := e.Upload(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	// 第一代结果晚到，不能覆盖第二代会话
	e.finish(1, first, nil)
	s := e.Session()
	if s.Generation != 2 || s.Status != StatusProcessing || s.Foreground != nil {
		t.Fatalf("stale result applied: gen=%d status=%v fg=%d", s.Generation, s.Status, len(s.Foreground))
	}
	if !bytes.Equal(s.Source, second) {
		t.Fatalf("source should be the latest upload")
	}
}

func TestExportRequiresSource(t *testing.T) {
	e := newEditor(nil, false)
	e.AddLayer()
	if _, err := e.Export(context.Background()); !errors.Is(err, composite.ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
	if _, err := e.Save(context.Background(), t.TempDir()); !errors.Is(err, composite.ErrNoSource) {
		t.Fatalf("expected ErrNoSource from Save, got %v", err)
	}
	if _, err := New(Options{Logger: quietLogger()}).Export(context.Background()); !errors.Is(err, composite.ErrNoPainter) {
		t.Fatalf("expected ErrNoPainter, got %v", err)
	}
}

func TestUploadRejectsUnsupportedImage(t *testing.T) {
	e := newEditor(nil, false)
	if err := e.Upload(context.Background(), []byte("GIF89a....")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if e.Session().HasImage() {
		t.Fatalf("rejected upload must not change the session")
	}
}

func TestLoadSkipsSeparation(t *testing.T) {
	src := pngOf(t, 5, 5, color.White)
	fg := pngOf(t, 5, 5, color.Transparent)
	e := newEditor(nil, false)
	if err := e.Load(src, fg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := waitSession(t, e)
	if s.Status != StatusReady || !bytes.Equal(s.Foreground, fg) {
		t.Fatalf("status=%v", s.Status)
	}
	path, err := e.Save(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := composite.FileName; len(path) < len(want) || path[len(path)-len(want):] != want {
		t.Fatalf("path %q should end with %q", path, want)
	}
}

func TestResetLayersOnUpload(t *testing.T) {
	sep := separation.Func(func(_ context.Context, in []byte) ([]byte, error) { return in, nil })
	src := pngOf(t, 2, 2, color.White)
	for _, reset := range []bool{false, true} {
		e := newEditor(sep, reset)
		e.AddLayer()
		if err := e.Upload(context.Background(), src); err != nil {
			t.Fatal(err)
		}
		waitSession(t, e)
		want := 1
		if reset {
			want = 0
		}
		if got := len(e.Layers()); got != want {
			t.Fatalf("reset=%v: %d layers, want %d", reset, got, want)
		}
	}
}

func TestLayerOperations(t *testing.T) {
	e := newEditor(nil, false)
	a := e.AddLayer()
	if !e.Apply(a.ID, layer.SetFontSize(80), layer.SetRotation(15)) {
		t.Fatalf("Apply should find layer %d", a.ID)
	}
	dup, ok := e.DuplicateLayer(a.ID)
	if !ok || dup.ID == a.ID || dup.FontSize != 80 {
		t.Fatalf("duplicate: %+v ok=%v", dup, ok)
	}
	if err := e.UpdateAttribute(a.ID, "glow", "1"); !errors.Is(err, layer.ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
	if !e.RemoveLayer(a.ID) || e.RemoveLayer(a.ID) {
		t.Fatalf("remove should succeed once")
	}
	if got := e.Layers(); len(got) != 1 || got[0].ID != dup.ID {
		t.Fatalf("layers after remove: %+v", got)
	}
}

func TestPreviewFollowsContainerWidth(t *testing.T) {
	e := newEditor(nil, false)
	l := e.AddLayer()
	e.Apply(l.ID, layer.SetFontSize(100))
	e.SetPreviewSize(500, 300)
	styles := e.Preview()
	if len(styles) != 1 || styles[0].FontSize != 50 {
		t.Fatalf("styles: %+v", styles)
	}
	if got := e.Session().Preview; got.Width != 500 || got.Height != 300 {
		t.Fatalf("preview size: %+v", got)
	}
}
