package editor

import "github.com/ByLCY/textbehind/composite"

// Status 是抠图流程的状态：idle → processing → ready | failed。
type Status int

const (
	StatusIdle Status = iota
	StatusProcessing
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusProcessing:
		return "processing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session 是一次编辑会话的显式状态，按值传递，调用方拿到的是快照。
type Session struct {
	Source     []byte
	Foreground []byte
	Status     Status
	Err        error // Status == StatusFailed 时的失败原因
	Preview    composite.Size
	Generation int // 每次上传递增，用于丢弃过期的抠图结果
}

// Processing 报告抠图是否仍在进行。
func (s Session) Processing() bool { return s.Status == StatusProcessing }

// HasImage 报告是否已经上传原图。
func (s Session) HasImage() bool { return len(s.Source) > 0 }

// Event 在状态变化时发出，供界面刷新。
type Event struct {
	Status     Status
	Generation int
	Err        error
}
