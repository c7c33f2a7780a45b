package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ByLCY/textbehind/editor"
	"github.com/ByLCY/textbehind/layer"
)

// Run shows the interactive layer editor until the user quits.
// Saved composites go to outDir.
func Run(ctx context.Context, ed *editor.Editor, outDir string) error {
	m := newModel(ctx, ed, outDir)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// ===== Messages =====

type eventMsg editor.Event

type savedMsg struct {
	path string
	err  error
}

// waitForEvent 把编辑器的状态通知转成 tea 消息，每次只取一条。
func waitForEvent(ch <-chan editor.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func saveCmd(ctx context.Context, ed *editor.Editor, dir string) tea.Cmd {
	return func() tea.Msg {
		path, err := ed.Save(ctx, dir)
		return savedMsg{path: path, err: err}
	}
}

// ===== Model =====

type model struct {
	ctx    context.Context
	ed     *editor.Editor
	outDir string

	// snapshots refreshed after every change
	session editor.Session
	layers  []layer.TextLayer

	// ui state
	cursor  int // selected layer
	attr    int // index into layer.Attributes
	editing bool
	saving  bool
	msg     string

	input   textinput.Model
	spinner spinner.Model
}

func newModel(ctx context.Context, ed *editor.Editor, outDir string) model {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 256
	m := model{
		ctx:     ctx,
		ed:      ed,
		outDir:  outDir,
		input:   in,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.ed.Events()))
}

// Update handles all TUI interactions.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.refresh()
		return m, waitForEvent(m.ed.Events())

	case savedMsg:
		m.saving = false
		if msg.err != nil {
			m.msg = "save failed: " + msg.err.Error()
		} else {
			m.msg = "saved " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.layers)-1 {
			m.cursor++
		}
	case "tab":
		m.attr = (m.attr + 1) % len(layer.Attributes)
	case "shift+tab":
		m.attr = (m.attr + len(layer.Attributes) - 1) % len(layer.Attributes)
	case "a":
		m.ed.AddLayer()
		m.refresh()
		m.cursor = len(m.layers) - 1
	case "d":
		if l, ok := m.selected(); ok {
			m.ed.DuplicateLayer(l.ID)
			m.refresh()
			m.cursor = len(m.layers) - 1
		}
	case "x":
		if l, ok := m.selected(); ok {
			m.ed.RemoveLayer(l.ID)
			m.refresh()
		}
	case "enter":
		l, ok := m.selected()
		if !ok {
			return m, nil
		}
		v, err := layer.Value(l, layer.Attributes[m.attr])
		if err != nil {
			m.msg = err.Error()
			return m, nil
		}
		m.editing = true
		m.msg = ""
		m.input.SetValue(v)
		return m, m.input.Focus()
	case "s":
		// 导出进行中时禁用保存
		if m.saving {
			return m, nil
		}
		m.saving = true
		m.msg = ""
		return m, saveCmd(m.ctx, m.ed, m.outDir)
	case "r":
		if err := m.ed.Retry(m.ctx); err != nil {
			m.msg = err.Error()
		}
		m.refresh()
	}
	return m, nil
}

func (m model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		if l, ok := m.selected(); ok {
			if err := m.ed.UpdateAttribute(l.ID, layer.Attributes[m.attr], m.input.Value()); err != nil {
				m.msg = err.Error()
			}
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) refresh() {
	m.session = m.ed.Session()
	m.layers = m.ed.Layers()
	if m.cursor >= len(m.layers) {
		m.cursor = len(m.layers) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) selected() (layer.TextLayer, bool) {
	if m.cursor < 0 || m.cursor >= len(m.layers) {
		return layer.TextLayer{}, false
	}
	return m.layers[m.cursor], true
}

// ===== Views =====

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	selStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "205", Dark: "213"}).Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Text behind image") + "  " + m.statusLine() + "\n\n")

	if len(m.layers) == 0 {
		b.WriteString(faintStyle.Render("No layers yet. Press a to add one.") + "\n")
	}
	for i, l := range m.layers {
		line := fmt.Sprintf("  #%d %q  %gpx %s", l.ID, l.Text, l.FontSize, l.Color)
		if i == m.cursor {
			line = selStyle.Render(fmt.Sprintf("> #%d %q  %gpx %s", l.ID, l.Text, l.FontSize, l.Color))
		}
		b.WriteString(line + "\n")
	}

	if l, ok := m.selected(); ok {
		b.WriteString("\n" + boxStyle.Render(m.viewAttributes(l)) + "\n")
		if styles := m.ed.Preview(); m.cursor < len(styles) {
			b.WriteString(faintStyle.Render(styles[m.cursor].CSS()) + "\n")
		}
	}

	if m.editing {
		b.WriteString("\n" + layer.Attributes[m.attr] + ": " + m.input.View() + "\n")
		b.WriteString(faintStyle.Render("enter: apply   esc: cancel") + "\n")
		return b.String()
	}
	if m.msg != "" {
		b.WriteString("\n" + m.msg + "\n")
	}
	b.WriteString("\n" + faintStyle.Render("a: add  d: duplicate  x: remove  tab: attribute  enter: edit  s: save  r: retry  q: quit") + "\n")
	return b.String()
}

func (m model) viewAttributes(l layer.TextLayer) string {
	var b strings.Builder
	for i, name := range layer.Attributes {
		v, _ := layer.Value(l, name)
		line := fmt.Sprintf("  %-12s %s", name, v)
		if i == m.attr {
			line = selStyle.Render(fmt.Sprintf("> %-12s %s", name, v))
		}
		b.WriteString(line)
		if i < len(layer.Attributes)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) statusLine() string {
	s := m.session
	switch s.Status {
	case editor.StatusProcessing:
		return m.spinner.View() + " separating foreground…"
	case editor.StatusFailed:
		return errStyle.Render("failed: "+errString(s.Err)) + faintStyle.Render("  (r to retry)")
	case editor.StatusReady:
		if m.saving {
			return m.spinner.View() + " exporting…"
		}
		return "ready"
	default:
		if !s.HasImage() {
			return faintStyle.Render("no image")
		}
		return s.Status.String()
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
