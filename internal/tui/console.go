// Package tui is an interactive console that runs the companion in-process
// and lets keys stand in for idle time, system audio and the camera.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/tui/keymap"
	"github.com/Iron-Ham/haunt/internal/tui/styles"
	"github.com/Iron-Ham/haunt/internal/util"
)

const (
	// maxLines caps the scrollback kept in memory.
	maxLines = 500

	sidebarWidth = 36
	refreshEvery = 250 * time.Millisecond
	doTimeout    = 5 * time.Second
)

// Engine is the part of orchestrator.Engine the console drives.
type Engine interface {
	Do(ctx context.Context, input string, args ...string) (orchestrator.Reply, error)
	Snapshot() orchestrator.Snapshot
}

// Producers receives simulated producer events. orchestrator.Relay
// implements it.
type Producers interface {
	AudioStarted()
	AudioStopped()
	CameraSample(s presence.Sample)
	CameraFailed(err error)
}

// IdleControl moves the simulated idle clock. idle.SimulatedSource
// implements it.
type IdleControl interface {
	Touch()
	Skip(d time.Duration)
}

// Deps wires a Model to a running engine.
type Deps struct {
	Engine    Engine
	Producers Producers
	Idle      IdleControl
	// Threshold reports the current idle threshold so a skip lands past it.
	Threshold func() time.Duration
	Lines     *LineWriter
	Now       func() time.Time
}

type replyMsg struct {
	input string
	reply orchestrator.Reply
	err   error
}

type tickMsg time.Time

// Model is the console's bubbletea model.
type Model struct {
	deps Deps
	keys keymap.KeyMap

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model
	help     help.Model
	typing   bool

	lines   []string
	snap    orchestrator.Snapshot
	audioOn bool
	status  string
	err     error
}

// NewModel creates a console model.
func NewModel(deps Deps) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	ti := textinput.New()
	ti.Prompt = "say> "
	ti.Placeholder = "come here, go away, how do you feel..."
	ti.CharLimit = 200

	return Model{
		deps:     deps,
		keys:     keymap.Default(),
		viewport: viewport.New(80, 20),
		input:    ti,
		help:     help.New(),
		status:   "press ? for help",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForLine(m.deps.Lines), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case lineMsg:
		m.appendLine(string(msg))
		return m, waitForLine(m.deps.Lines)

	case tickMsg:
		m.snap = m.deps.Engine.Snapshot()
		return m, tick()

	case replyMsg:
		m.handleReply(msg)
		return m, nil

	case tea.KeyMsg:
		if m.typing {
			return m.handleTypingKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) resize() {
	w := m.width - sidebarWidth - 4
	if w < 20 {
		w = 20
	}
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w
	m.help.Width = m.width
	m.refreshContent()
	m.viewport.GotoBottom()
}

// refreshContent clips lines to the viewport so they never wrap.
func (m *Model) refreshContent() {
	clipped := make([]string, len(m.lines))
	for i, l := range m.lines {
		clipped[i] = util.Clip(l, m.viewport.Width)
	}
	m.viewport.SetContent(strings.Join(clipped, "\n"))
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	atBottom := m.viewport.AtBottom()
	m.refreshContent()
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) handleReply(r replyMsg) {
	if r.err != nil {
		m.err = r.err
		m.status = ""
		return
	}
	m.err = nil
	msg := r.reply.Message
	if msg == "" {
		msg = "ok"
	}
	if !r.reply.OK {
		m.err = errors.New(string(r.reply.Action) + ": " + msg)
		m.status = ""
	} else {
		m.status = fmt.Sprintf("%s: %s", r.reply.Action, msg)
	}
	if r.reply.Status != nil {
		m.snap = *r.reply.Status
	}
}

func (m Model) handleTypingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		m.input.Blur()
		m.typing = false
		if text == "" {
			return m, nil
		}
		return m, m.do(text)
	case key.Matches(msg, m.keys.Cancel):
		m.input.Reset()
		m.input.Blur()
		m.typing = false
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Summon):
		return m, m.do(string(command.Summon))
	case key.Matches(msg, m.keys.Hide):
		return m, m.do(string(command.Hide))
	case key.Matches(msg, m.keys.Toggle):
		return m, m.do(string(command.Toggle))
	case key.Matches(msg, m.keys.Comment):
		return m, m.do(string(command.Comment))
	case key.Matches(msg, m.keys.Mood):
		return m, m.do(string(command.Mood))
	case key.Matches(msg, m.keys.Say):
		m.typing = true
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.IdleSkip):
		skip := time.Second
		if m.deps.Threshold != nil {
			skip += m.deps.Threshold()
		}
		m.deps.Idle.Skip(skip)
		m.status = "idle clock moved forward " + skip.String()
	case key.Matches(msg, m.keys.Touch):
		m.deps.Idle.Touch()
		m.status = "user activity"
	case key.Matches(msg, m.keys.Audio):
		m.audioOn = !m.audioOn
		if m.audioOn {
			m.deps.Producers.AudioStarted()
			m.status = "system audio started"
		} else {
			m.deps.Producers.AudioStopped()
			m.status = "system audio stopped"
		}
	case key.Matches(msg, m.keys.Face):
		m.deps.Producers.CameraSample(presence.Sample{
			At:           m.deps.Now(),
			FaceDetected: true,
			Confidence:   1,
			Expression:   "happy",
			Score:        1,
		})
		m.status = "camera: happy face"
	case key.Matches(msg, m.keys.NoFace):
		m.deps.Producers.CameraSample(presence.Sample{
			At:         m.deps.Now(),
			Confidence: 1,
		})
		m.status = "camera: nobody there"
	case key.Matches(msg, m.keys.CameraFail):
		m.deps.Producers.CameraFailed(errors.New("camera disconnected"))
		m.status = "camera failed"

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.err = nil
	return m, nil
}

func (m Model) do(input string) tea.Cmd {
	engine := m.deps.Engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), doTimeout)
		defer cancel()
		reply, err := engine.Do(ctx, input)
		return replyMsg{input: input, reply: reply, err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Starting haunt..."
	}

	content := styles.ContentBox.Render(m.viewport.View())
	side := styles.Sidebar.Width(sidebarWidth - 2).Render(m.sidebar())
	body := lipgloss.JoinHorizontal(lipgloss.Top, content, side)

	var line string
	switch {
	case m.typing:
		line = m.input.View()
	case m.err != nil:
		line = styles.ErrorMsg.Render(m.err.Error())
	default:
		line = styles.InfoMsg.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		line,
		styles.HelpBar.Render(m.help.View(m.keys)),
	)
}

func (m Model) sidebar() string {
	s := m.snap
	state := s.State
	if state == "" {
		state = "STARTING"
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("haunt"))
	b.WriteString("\n")
	b.WriteString(styles.Badge(styles.StateIcon(state)+" "+state, styles.StateColor(state)))
	b.WriteString("\n\n")

	valueWidth := sidebarWidth - 18
	row := func(label, value string) {
		b.WriteString(styles.Label.Render(label))
		b.WriteString(styles.Value.Render(util.Clip(value, valueWidth)))
		b.WriteString("\n")
	}
	colored := func(label, value string, c lipgloss.Color) {
		b.WriteString(styles.Label.Render(label))
		b.WriteString(lipgloss.NewStyle().Foreground(c).Render(value))
		b.WriteString("\n")
	}

	colored("mode", s.Mode, styles.ModeColor(s.Mode))
	row("visible", yesNo(s.Visible))
	row("visual", s.Visual)
	colored("mood", fmt.Sprintf("%s (%.2f)", s.MoodLabel, s.Mood), styles.MoodColor(s.MoodLabel))
	if s.Expression != "" {
		row("expression", s.Expression)
	}
	row("system audio", yesNo(s.AudioActive))
	row("speaking", yesNo(s.SelfPlayback))
	row("camera", cameraState(s))
	row("commenting", yesNo(s.CommentInFlight))
	row("idle after", s.IdleThreshold)
	if s.Invaders > 0 {
		row("invaders", fmt.Sprintf("%d (%s)", s.Invaders, strings.ToLower(s.Invasion)))
	}
	if len(s.Timers) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("timers"))
		b.WriteString("\n")
		for _, t := range s.Timers {
			b.WriteString(styles.Muted.Render("  " + util.Clip(t, sidebarWidth-6)))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func cameraState(s orchestrator.Snapshot) string {
	switch {
	case !s.CameraEnabled:
		return "off"
	case s.CameraRunning:
		return "running"
	default:
		return "idle"
	}
}
