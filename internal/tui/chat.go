// Package tui implements the interactive chat client used by spectl chat.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	api "github.com/fyrsmithlabs/specd/internal/http"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	inputHeight   = 3

	// chromeHeight is the rows used by header, status line, input and footer.
	chromeHeight = inputHeight + 5

	// DefaultSpecPath is where /spec saves the finished spec.
	DefaultSpecPath = "product-spec.md"
)

// Conversation is the server API the chat drives.
type Conversation interface {
	CreateSession(ctx context.Context) (*api.SessionResponse, error)
	Send(ctx context.Context, id, message string) (*api.MessageResponse, error)
	Spec(ctx context.Context, id string) (string, error)
}

// Options configures a chat model.
type Options struct {
	// SessionID resumes an existing session. A new one is created when empty.
	SessionID string
	// SpecPath is where /spec writes the spec (default product-spec.md).
	SpecPath string
}

type role int

const (
	roleUser role = iota
	roleAgent
	roleStep
	roleSystem
	roleError
)

type line struct {
	role role
	text string
}

// Message types
type sessionMsg struct{ session *api.SessionResponse }
type replyMsg struct{ reply *api.MessageResponse }
type specSavedMsg struct{ path string }
type errMsg struct{ err error }

// Model is the bubbletea chat model.
type Model struct {
	ctx      context.Context
	conv     Conversation
	specPath string

	sessionID string
	stage     workflow.Stage
	specReady bool

	lines    []line
	busy     bool
	err      error
	quitting bool

	width  int
	height int

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	writeFile func(path string, data []byte) error
}

// NewModel creates a chat model.
func NewModel(ctx context.Context, conv Conversation, opts Options) Model {
	ti := textarea.New()
	ti.Placeholder = "Describe your product idea..."
	ti.Focus()
	ti.CharLimit = 4000
	ti.ShowLineNumbers = false
	ti.SetWidth(defaultWidth)
	ti.SetHeight(inputHeight)
	ti.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stepStyle

	specPath := opts.SpecPath
	if specPath == "" {
		specPath = DefaultSpecPath
	}

	m := Model{
		ctx:       ctx,
		conv:      conv,
		specPath:  specPath,
		sessionID: opts.SessionID,
		width:     defaultWidth,
		height:    defaultHeight,
		input:     ti,
		viewport:  viewport.New(defaultWidth, defaultHeight-chromeHeight),
		spinner:   s,
		writeFile: func(path string, data []byte) error { return os.WriteFile(path, data, 0o600) },
	}
	if m.sessionID == "" {
		m.busy = true
	} else {
		m.stage = workflow.StageDiscovery
		m.addLine(roleSystem, "Resuming session "+m.sessionID)
	}
	return m
}

// Init starts the cursor blink and, for new chats, creates the session.
func (m Model) Init() tea.Cmd {
	if m.sessionID == "" {
		return tea.Batch(textarea.Blink, m.spinner.Tick, createSession(m.ctx, m.conv))
	}
	return textarea.Blink
}

func createSession(ctx context.Context, conv Conversation) tea.Cmd {
	return func() tea.Msg {
		s, err := conv.CreateSession(ctx)
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg{s}
	}
}

func sendMessage(ctx context.Context, conv Conversation, id, text string) tea.Cmd {
	return func() tea.Msg {
		r, err := conv.Send(ctx, id, text)
		if err != nil {
			return errMsg{err}
		}
		return replyMsg{r}
	}
}

func saveSpec(ctx context.Context, conv Conversation, id, path string, write func(string, []byte) error) tea.Cmd {
	return func() tea.Msg {
		spec, err := conv.Spec(ctx, id)
		if err != nil {
			return errMsg{err}
		}
		if err := write(path, []byte(spec)); err != nil {
			return errMsg{fmt.Errorf("save spec: %w", err)}
		}
		return specSavedMsg{path}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case sessionMsg:
		m.busy = false
		m.sessionID = msg.session.ID
		m.stage = msg.session.Stage
		m.addLine(roleAgent, "Hi! Tell me about the product you want to build. Who is it for, and what problem does it solve?")

	case replyMsg:
		m.busy = false
		m.err = nil
		r := msg.reply
		for _, step := range r.Steps {
			m.addLine(roleStep, step)
		}
		m.addLine(roleAgent, r.Reply)
		m.stage = r.Stage
		if r.SpecReady && !m.specReady {
			m.specReady = true
			m.addLine(roleSystem, "Your spec is ready. Type /spec to save it to "+m.specPath+".")
		}

	case specSavedMsg:
		m.busy = false
		m.addLine(roleSystem, "Saved spec to "+msg.path)

	case errMsg:
		m.busy = false
		m.err = msg.err
		m.addLine(roleError, msg.err.Error())

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles Enter: slash commands or a message to the agent.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy || m.sessionID == "" {
		return m, nil
	}
	m.input.Reset()

	switch strings.ToLower(text) {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/spec":
		if !m.specReady {
			m.addLine(roleSystem, "The spec isn't ready yet. Keep going until scoping is agreed.")
			return m, nil
		}
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, saveSpec(m.ctx, m.conv, m.sessionID, m.specPath, m.writeFile))
	}

	m.addLine(roleUser, text)
	m.busy = true
	return m, tea.Batch(m.spinner.Tick, sendMessage(m.ctx, m.conv, m.sessionID, text))
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(width)
	vh := height - chromeHeight
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.refresh()
}

func (m *Model) addLine(r role, text string) {
	m.lines = append(m.lines, line{role: r, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

// transcript renders all lines wrapped to the viewport width.
func (m Model) transcript() string {
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n")
		}
		switch l.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: ") + wrap.Render(l.text))
		case roleAgent:
			b.WriteString(agentStyle.Render("Agent: ") + wrap.Render(l.text))
		case roleStep:
			b.WriteString(stepStyle.Render("… " + l.text))
		case roleError:
			b.WriteString(errorStyle.Render("✗ " + l.text))
		default:
			b.WriteString(successStyle.Render("● ") + dimStyle.Render(l.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the chat
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := headerStyle.Render(" specd ") + " " + stageBadge(m.stage)
	if m.sessionID != "" {
		header += " " + dimStyle.Render(m.sessionID)
	}

	status := ""
	switch {
	case m.busy:
		status = m.spinner.View() + stepStyle.Render(" thinking...")
	case m.err != nil:
		status = errorStyle.Render("last request failed, try again")
	}

	footer := footerKeyStyle.Render("[enter]") + footerStyle.Render(" send  ") +
		footerKeyStyle.Render("/spec") + footerStyle.Render(" save spec  ") +
		footerKeyStyle.Render("[esc]") + footerStyle.Render(" quit")

	return strings.Join([]string{header, m.viewport.View(), status, m.input.View(), footer}, "\n")
}

// SessionID returns the active session, if any.
func (m Model) SessionID() string { return m.sessionID }

// Run starts the chat program and blocks until the user quits.
func Run(ctx context.Context, conv Conversation, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, conv, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(Model); ok && m.sessionID != "" {
		fmt.Fprintf(os.Stderr, "session: %s\n", m.sessionID)
	}
	return nil
}
