package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/render/scene"
	"github.com/matzehuels/olette/pkg/session"
)

// layoutInterval is the pause between two layout ticks while the layout is warm.
const layoutInterval = 33 * time.Millisecond

// Debugger styles
var (
	tuiHeaderStyle   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	tuiSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite).Background(colorRedBg)
	tuiRedexStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	tuiNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	tuiDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	tuiErrorStyle    = lipgloss.NewStyle().Foreground(colorRed)
	tuiPromptStyle   = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
)

// =============================================================================
// Messages
// =============================================================================

// layoutTickMsg advances the force layout.
type layoutTickMsg struct{}

// autoTickMsg fires one auto-step. gen ties it to the run that scheduled it
// so ticks from a cancelled run are dropped.
type autoTickMsg struct{ gen int }

func layoutTick() tea.Cmd {
	return tea.Tick(layoutInterval, func(time.Time) tea.Msg { return layoutTickMsg{} })
}

func autoTick(d time.Duration, gen int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return autoTickMsg{gen: gen} })
}

// =============================================================================
// DebugModel - Interactive rewrite debugger
// =============================================================================

// promptKind is the line being edited at the bottom of the screen.
type promptKind int

const (
	promptNone promptKind = iota
	promptLoad
	promptTitle
	promptDelay
)

func (p promptKind) String() string {
	switch p {
	case promptLoad:
		return "term"
	case promptTitle:
		return "title"
	case promptDelay:
		return "delay (seconds)"
	}
	return ""
}

// DebugModel is the bubbletea model of the interactive debugger. Every
// session call happens inside Update, which makes the event loop the
// session's only owner.
type DebugModel struct {
	ctx  context.Context
	sess *session.Session
	log  *tailWriter

	prompt promptKind
	input  string

	message string
	err     error

	autoGen int
	height  int
	offset  int
	quit    bool
}

// newDebugModel creates the debugger model. log receives the session's log
// output; its last line is shown in the footer.
func newDebugModel(ctx context.Context, sess *session.Session, log *tailWriter) DebugModel {
	if log == nil {
		log = &tailWriter{}
	}
	return DebugModel{ctx: ctx, sess: sess, log: log, height: 15}
}

func (m DebugModel) Init() tea.Cmd {
	return layoutTick()
}

func (m DebugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-10, 5)
		return m, nil

	case layoutTickMsg:
		if m.sess.LayoutActive() {
			if err := m.sess.Tick(); err != nil {
				m.err = err
			}
		}
		return m, layoutTick()

	case autoTickMsg:
		if msg.gen != m.autoGen {
			return m, nil
		}
		return m.autoStep()

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m DebugModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	m.message = ""

	switch msg.String() {
	case "q", "ctrl+c":
		m.sess.CancelAuto()
		m.quit = true
		return m, tea.Quit

	case "l":
		return m.openPrompt(promptLoad, ""), nil
	case "T":
		id, ok := m.sess.Selected()
		if !ok {
			m.err = errors.New(errors.ErrCodeNoSelection, "select a node to title")
			return m, nil
		}
		n, _ := m.sess.Model().Node(id)
		return m.openPrompt(promptTitle, n.Title), nil
	case "t":
		return m.openPrompt(promptDelay, strconv.FormatFloat(m.sess.Delay().Seconds(), 'f', -1, 64)), nil

	case "enter", "r":
		m.err = m.sess.Reduce(m.ctx)
	case "1":
		m.err = m.sess.ReduceWith(m.ctx, engine.RuleAuto)
	case "2":
		m.err = m.sess.ReduceWith(m.ctx, engine.RuleDuplicate)
	case "3":
		m.err = m.sess.ReduceWith(m.ctx, engine.RuleCancel)
	case "R":
		m.sess.SetRule(nextRule(m.sess.Rule()))
		m.message = "rule: " + m.sess.Rule().String()

	case "a":
		if m.sess.Status().Auto != autostep.Idle.String() {
			m.sess.CancelAuto()
			return m, nil
		}
		if !m.sess.StartAuto() {
			m.message = "nothing to run"
			return m, nil
		}
		m.autoGen++
		return m, autoTick(0, m.autoGen)
	case "esc":
		m.sess.Cancel()

	case "left", "b":
		_, m.err = m.sess.Back(m.ctx)
	case "right", "f":
		_, m.err = m.sess.Forward(m.ctx)
	case "ctrl+r":
		m.err = m.sess.Resync(m.ctx)

	case "tab", "n":
		if _, ok := m.sess.CycleSelection(); !ok {
			m.message = "no reducible node"
		}
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)

	case "p":
		if m.sess.Status().Force {
			m.sess.ForceOff()
			m.message = "layout pinned"
		} else {
			m.sess.ForceOn()
			m.message = "layout released"
		}

	case "e":
		m.exportScene()
	}
	return m, nil
}

func (m DebugModel) openPrompt(p promptKind, initial string) DebugModel {
	m.prompt = p
	m.input = initial
	return m
}

func (m DebugModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.prompt = promptNone
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
	default:
		return m, nil
	}

	p, input := m.prompt, m.input
	m.prompt, m.input = promptNone, ""
	m.err = nil

	switch p {
	case promptLoad:
		m.err = m.sess.Load(m.ctx, input)
		m.offset = 0
	case promptTitle:
		if id, ok := m.sess.Selected(); ok {
			m.err = m.sess.SetTitle(m.ctx, id, input)
		}
	case promptDelay:
		d, err := session.ParseDelay(input)
		if err == nil {
			err = m.sess.SetDelay(d)
		}
		m.err = err
	}
	return m, nil
}

func (m *DebugModel) autoStep() (tea.Model, tea.Cmd) {
	out, err := m.sess.AutoStep(m.ctx)
	switch out {
	case autostep.Stepped:
		return *m, autoTick(m.sess.Delay(), m.autoGen)
	case autostep.Exhausted:
		m.message = fmt.Sprintf("normal form after %d steps", m.sess.Status().Steps)
	case autostep.Halted:
		m.message = "auto-step cancelled"
	case autostep.Failed:
		m.err = err
	}
	return *m, nil
}

// moveSelection selects the node delta rows away from the current one.
func (m *DebugModel) moveSelection(delta int) {
	ids := m.sess.Model().IDs()
	if len(ids) == 0 {
		return
	}
	var i int
	if id, ok := m.sess.Selected(); ok {
		i = (m.sess.Model().Index(id) + delta + len(ids)) % len(ids)
	} else if delta < 0 {
		i = len(ids) - 1
	}
	m.sess.Select(ids[i])

	if i < m.offset {
		m.offset = i
	} else if i >= m.offset+m.height {
		m.offset = i - m.height + 1
	}
}

func (m *DebugModel) exportScene() {
	st := m.sess.Status()
	if !st.Loaded {
		m.message = "nothing to export"
		return
	}
	path := scenePath(st.Slot, st.Cursor, "svg")
	if err := os.WriteFile(path, scene.RenderSVG(m.sess.Graph(), scene.WithBackground("white")), 0o644); err != nil {
		m.err = fmt.Errorf("export scene: %w", err)
		return
	}
	m.message = "wrote " + path
}

func nextRule(r engine.RuleKind) engine.RuleKind {
	for i, k := range engine.RuleKinds {
		if k == r {
			return engine.RuleKinds[(i+1)%len(engine.RuleKinds)]
		}
	}
	return engine.RuleAuto
}

// =============================================================================
// View
// =============================================================================

func (m DebugModel) View() string {
	if m.quit {
		return ""
	}
	var b strings.Builder
	st := m.sess.Status()

	b.WriteString(StyleTitle.Render("olette"))
	b.WriteString("  ")
	b.WriteString(statusLine(st))
	b.WriteString("\n")
	b.WriteString(tuiDimStyle.Render("l load  ⏎ reduce  1/2/3 auto/dup/cancel  R rule  a auto  esc cancel  ←/→ history  tab cycle  T title  t delay  p pin  e export  q quit"))
	b.WriteString("\n\n")

	if st.Loaded {
		b.WriteString(m.nodeTable(st))
	} else {
		b.WriteString(tuiDimStyle.Render("  no term loaded, press l"))
	}
	b.WriteString("\n\n")

	switch {
	case m.prompt != promptNone:
		b.WriteString(tuiPromptStyle.Render(m.prompt.String() + "> "))
		b.WriteString(m.input + "█")
	case m.err != nil:
		b.WriteString(tuiErrorStyle.Render(iconError + " " + errorText(m.err)))
	case m.message != "":
		b.WriteString(StyleSuccess.Render(iconSuccess + " " + m.message))
	default:
		b.WriteString(tuiDimStyle.Render(m.log.Last()))
	}
	return b.String()
}

func statusLine(st session.Status) string {
	parts := []string{
		fmt.Sprintf("step %d/%d", st.Cursor+1, max(st.Entries, 1)),
		"rule " + st.Rule.String(),
		fmt.Sprintf("delay %s", time.Duration(st.DelayMS)*time.Millisecond),
	}
	if st.Auto != autostep.Idle.String() {
		parts = append(parts, StyleHighlight.Render(fmt.Sprintf("auto %s (%d)", st.Auto, st.Steps)))
	}
	if !st.Force {
		parts = append(parts, "pinned")
	}
	if !st.InSync {
		parts = append(parts, StyleWarning.Render("engine stale, ctrl+r to resync"))
	}
	if st.Slot != "" {
		parts = append(parts, "slot "+st.Slot)
	}
	return tuiDimStyle.Render(strings.Join(parts, " · "))
}

func (m DebugModel) nodeTable(st session.Status) string {
	nodes := m.sess.Model().Nodes()
	end := min(m.offset+m.height, len(nodes))
	start := min(m.offset, end)

	var selected graph.NodeID = -1
	if st.Selected != nil {
		selected = *st.Selected
	}

	rows := make([][]string, 0, end-start)
	for _, n := range nodes[start:end] {
		cursor := "  "
		if n.ID == selected {
			cursor = "▸ "
		}
		state := ""
		switch {
		case n.ID == selected && st.Eligible:
			state = "redex"
		case n.ID == selected:
			state = "selected"
		case n.Reducible():
			state = "redex"
		}
		pin := ""
		if n.Pinned() {
			pin = "pinned"
		}
		rows = append(rows, []string{
			cursor,
			strconv.Itoa(int(n.ID)),
			n.Kind,
			n.DisplayLabel(),
			n.Title,
			state,
			fmt.Sprintf("%.0f,%.0f", n.X, n.Y),
			pin,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Kind", "Label", "Title", "State", "Pos", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tuiHeaderStyle
			}
			idx := start + row
			if idx >= len(nodes) {
				return lipgloss.NewStyle()
			}
			n := nodes[idx]
			switch {
			case n.ID == selected:
				return tuiSelectedStyle
			case n.Reducible():
				return tuiRedexStyle
			case col >= 6:
				return tuiDimStyle
			}
			return tuiNormalStyle
		})

	footer := tuiDimStyle.Render(fmt.Sprintf("  [%d-%d/%d] %d reducible", start+1, end, len(nodes), st.Reducible))
	return t.Render() + "\n" + footer
}

func errorText(err error) string {
	if code := errors.GetCode(err); code != "" {
		return fmt.Sprintf("%s: %s", code, errors.UserMessage(err))
	}
	return err.Error()
}

// =============================================================================
// Log Tail
// =============================================================================

// tailWriter keeps the last complete log line for the footer.
type tailWriter struct {
	mu   sync.Mutex
	last string
}

func (w *tailWriter) Write(p []byte) (int, error) {
	lines := strings.Split(strings.TrimRight(string(p), "\n"), "\n")
	w.mu.Lock()
	w.last = lines[len(lines)-1]
	w.mu.Unlock()
	return len(p), nil
}

// Last returns the most recent line.
func (w *tailWriter) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
