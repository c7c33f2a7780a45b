package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ByLCY/textbehind/composite"
	"github.com/ByLCY/textbehind/layer"
	"github.com/ByLCY/textbehind/preview"
	"github.com/ByLCY/textbehind/separation"
)

var (
	// ErrUnsupportedImage 表示上传的文件不是 JPEG 或 PNG。
	ErrUnsupportedImage = errors.New("editor: only JPEG and PNG images are supported")
	// ErrNothingToRetry 表示当前没有失败的抠图可以重试。
	ErrNothingToRetry = errors.New("editor: no failed separation to retry")
)

// Options 配置编辑器依赖。
type Options struct {
	Separator separation.Separator
	Engine    *composite.Engine
	Store     *layer.Store
	// ResetLayersOnUpload 为 true 时，上传新图会清空已有图层。
	ResetLayersOnUpload bool
	Logger              logrus.FieldLogger
}

// Editor 串联上传、抠图、图层编辑与导出。图层编辑不受抠图状态影响。
type Editor struct {
	sep    separation.Separator
	engine *composite.Engine
	store  *layer.Store
	reset  bool
	log    logrus.FieldLogger

	mu      sync.Mutex
	session Session
	done    chan struct{} // 当前一代抠图结束时关闭
	events  chan Event
}

// New creates an editor; a nil Store gets a fresh one.
func New(opts Options) *Editor {
	store := opts.Store
	if store == nil {
		store = layer.NewStore()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	done := make(chan struct{})
	close(done)
	return &Editor{
		sep:    opts.Separator,
		engine: opts.Engine,
		store:  store,
		reset:  opts.ResetLayersOnUpload,
		log:    log,
		done:   done,
		events: make(chan Event, 16),
	}
}

// Events 返回状态变化通知；通道满时旧的通知会被丢弃，界面应以 Session() 为准。
func (e *Editor) Events() <-chan Event { return e.events }

// Session 返回会话快照。
func (e *Editor) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Upload 记录原图并在后台启动抠图，立即返回。
func (e *Editor) Upload(ctx context.Context, src []byte) error {
	if err := checkImage(src); err != nil {
		return err
	}
	e.mu.Lock()
	e.session.Source = src
	e.session.Foreground = nil
	e.session.Err = nil
	e.session.Generation++
	if e.reset {
		e.store.Reset()
	}
	gen := e.startLocked(ctx, src)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"generation": gen, "bytes": len(src)}).Info("image uploaded, separating foreground")
	return nil
}

// Load 直接使用已有的前景抠图，不再调用抠图服务（例如场景文件里给出了 foreground）。
func (e *Editor) Load(src, foreground []byte) error {
	if err := checkImage(src); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Source = src
	e.session.Foreground = foreground
	e.session.Err = nil
	e.session.Generation++
	e.session.Status = StatusReady
	if e.reset {
		e.store.Reset()
	}
	done := make(chan struct{})
	close(done)
	e.done = done
	e.emit(Event{Status: StatusReady, Generation: e.session.Generation})
	return nil
}

// Retry 在抠图失败后重新执行，无需重新上传。
func (e *Editor) Retry(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status != StatusFailed || !e.session.HasImage() {
		return ErrNothingToRetry
	}
	e.session.Err = nil
	gen := e.startLocked(ctx, e.session.Source)
	e.log.WithField("generation", gen).Info("retrying foreground separation")
	return nil
}

// Wait 阻塞到当前一代抠图结束（或 ctx 结束），返回会话快照。
func (e *Editor) Wait(ctx context.Context) (Session, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	select {
	case <-done:
		return e.Session(), nil
	case <-ctx.Done():
		return e.Session(), ctx.Err()
	}
}

// SetPreviewSize 记录预览容器的最新尺寸。
func (e *Editor) SetPreviewSize(w, h float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Preview = composite.Size{Width: w, Height: h}
}

func (e *Editor) AddLayer() layer.TextLayer {
	l := e.store.Add()
	e.log.WithField("layer", l.ID).Debug("layer added")
	return l
}

// Apply 对图层应用类型化修改，id 不存在时返回 false。
func (e *Editor) Apply(id int, updates ...layer.Update) bool {
	return e.store.Update(id, updates...)
}

// UpdateAttribute 按属性名修改图层；未知属性名返回错误。
func (e *Editor) UpdateAttribute(id int, name, value string) error {
	if err := e.store.UpdateAttribute(id, name, value); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"layer": id, "attribute": name}).Debug("layer updated")
	return nil
}

func (e *Editor) DuplicateLayer(id int) (layer.TextLayer, bool) {
	return e.store.Duplicate(id)
}

func (e *Editor) RemoveLayer(id int) bool {
	return e.store.Remove(id)
}

// Layers 返回图层快照。
func (e *Editor) Layers() []layer.TextLayer { return e.store.Layers() }

// Preview 返回当前预览宽度下每个图层的样式。
func (e *Editor) Preview() []preview.Style {
	s := e.Session()
	return preview.RenderAll(e.store.Layers(), s.Preview.Width)
}

// Export 用当前会话与图层生成全分辨率合成图。前景尚未就绪时只合成原图与文字。
func (e *Editor) Export(ctx context.Context) (composite.Result, error) {
	if e.engine == nil {
		return composite.Result{}, composite.ErrNoPainter
	}
	res, err := e.engine.Export(ctx, e.input())
	if err != nil {
		return res, err
	}
	e.logForeground(res)
	return res, nil
}

// Save 导出并写入 dir/text-behind-image.png。
func (e *Editor) Save(ctx context.Context, dir string) (string, error) {
	if e.engine == nil {
		return "", composite.ErrNoPainter
	}
	path, res, err := e.engine.Save(ctx, e.input(), dir)
	if err != nil {
		return "", err
	}
	e.logForeground(res)
	e.log.WithFields(logrus.Fields{"path": path, "width": res.Width, "height": res.Height}).Info("composite saved")
	return path, nil
}

func (e *Editor) input() composite.Input {
	s := e.Session()
	return composite.Input{
		Source:     s.Source,
		Foreground: s.Foreground,
		Layers:     e.store.Layers(),
		Preview:    s.Preview,
	}
}

func (e *Editor) logForeground(res composite.Result) {
	if res.ForegroundErr != nil {
		e.log.WithError(res.ForegroundErr).Warn("foreground could not be drawn, text left un-occluded")
	}
}

// startLocked 切换到 processing 并在后台抠图；调用方必须持有 e.mu。
func (e *Editor) startLocked(ctx context.Context, src []byte) int {
	gen := e.session.Generation
	done := make(chan struct{})
	e.done = done
	e.session.Status = StatusProcessing
	e.emit(Event{Status: StatusProcessing, Generation: gen})

	go func() {
		defer close(done)
		fg, err := separation.Run(ctx, e.sep, src)
		e.finish(gen, fg, err)
	}()
	return gen
}

func (e *Editor) finish(gen int, fg []byte, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.session.Generation {
		e.log.WithField("generation", gen).Debug("discarding stale separation result")
		return
	}
	if err != nil {
		e.session.Status = StatusFailed
		e.session.Err = err
		e.log.WithError(err).WithField("generation", gen).Error("foreground separation failed")
		e.emit(Event{Status: StatusFailed, Generation: gen, Err: err})
		return
	}
	e.session.Foreground = fg
	e.session.Status = StatusReady
	e.log.WithField("generation", gen).Info("foreground ready")
	e.emit(Event{Status: StatusReady, Generation: gen})
}

func (e *Editor) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func checkImage(src []byte) error {
	_, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "jpeg" && format != "png" {
		return fmt.Errorf("%w: got %s", ErrUnsupportedImage, format)
	}
	return nil
}
