package tapescmder

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/cliui"
	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/resilience"
	"github.com/papercomputeco/spool/pkg/tape"
)

const browseLongDesc string = `Browse recorded tapes in an interactive terminal UI.

The list view shows the most recent tapes. Press enter to replay the selected
tape through its vendor parser and read the reconstructed text, tool calls
and issues; esc goes back and q quits.`

const defaultBrowseLimit = 200

type browseCommander struct {
	storeCommander
	limit int
}

func newBrowseCmd() *cobra.Command {
	cmder := &browseCommander{}

	cmd := &cobra.Command{
		Use:     "browse",
		Short:   "Browse recorded tapes interactively",
		Long:    browseLongDesc,
		Args:    cobra.NoArgs,
		PreRunE: cmder.preRun,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd)
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", defaultBrowseLimit, "Maximum number of tapes to load (0 loads all)")

	return cmd
}

func (c *browseCommander) run(ctx context.Context, cmd *cobra.Command) error {
	settings, err := c.settings()
	if err != nil {
		return err
	}

	store, err := settings.OpenStore(ctx, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tapes, err := store.List(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("listing tapes: %w", err)
	}
	if len(tapes) == 0 {
		fmt.Fprintf(c.out, "  %s No tapes recorded yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	model := newBrowseModel(ctx, store, settings.Policy(c.logger), c.limit, tapes)
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(c.out),
	)
	_, err = program.Run()
	return err
}

type browseView int

const (
	viewList browseView = iota
	viewTape
)

type browseModel struct {
	ctx    context.Context
	store  tape.Recorder
	policy *resilience.Policy
	limit  int

	tapes  []*tape.Tape
	detail *tapeDetail
	view   browseView
	cursor int
	scroll int
	width  int
	height int
	err    error
	keys   browseKeyMap
	help   help.Model
}

// tapeDetail is a tape together with the result of replaying it.
type tapeDetail struct {
	tape      *tape.Tape
	text      string
	toolCalls []llm.ToolCall
	issues    []llm.Issue
}

var (
	browseTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	browseMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	browseDividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	browseHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true)
	browseSectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
)

type browseKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Enter, k.Back, k.Refresh, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up, k.Enter, k.Back}, {k.Refresh, k.Quit}}
}

func defaultBrowseKeyMap() browseKeyMap {
	return browseKeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Enter:   key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "replay")),
		Back:    key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("esc", "back")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type tapesLoadedMsg struct {
	tapes []*tape.Tape
	err   error
}

type tapeReplayedMsg struct {
	detail *tapeDetail
	err    error
}

func newBrowseModel(ctx context.Context, store tape.Recorder, policy *resilience.Policy, limit int, tapes []*tape.Tape) browseModel {
	return browseModel{
		ctx:    ctx,
		store:  store,
		policy: policy,
		limit:  limit,
		tapes:  tapes,
		view:   viewList,
		keys:   defaultBrowseKeyMap(),
		help:   help.New(),
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tapesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.tapes = msg.tapes
		m.cursor = clamp(m.cursor, len(m.tapes)-1)
		return m, nil
	case tapeReplayedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.detail = msg.detail
		m.view = viewTape
		m.scroll = 0
		return m, nil
	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m browseModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Down):
		return m.moveCursor(1)
	case key.Matches(msg, m.keys.Up):
		return m.moveCursor(-1)
	case key.Matches(msg, m.keys.Enter):
		if m.view == viewList && len(m.tapes) > 0 {
			return m, replayTapeCmd(m.ctx, m.tapes[m.cursor], m.policy)
		}
	case key.Matches(msg, m.keys.Back):
		if m.view == viewTape {
			m.view = viewList
			m.detail = nil
		}
	case key.Matches(msg, m.keys.Refresh):
		if m.view == viewList {
			return m, loadTapesCmd(m.ctx, m.store, m.limit)
		}
	}
	return m, nil
}

// moveCursor moves the selection in the list view and scrolls the replay
// text in the tape view.
func (m browseModel) moveCursor(delta int) (tea.Model, tea.Cmd) {
	if m.view == viewTape {
		if m.detail != nil {
			m.scroll = clamp(m.scroll+delta, len(m.detailLines())-1)
		}
		return m, nil
	}
	if len(m.tapes) == 0 {
		return m, nil
	}
	m.cursor = clamp(m.cursor+delta, len(m.tapes)-1)
	return m, nil
}

func (m browseModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m browseModel) render() string {
	var body string
	if m.view == viewTape && m.detail != nil {
		body = m.renderTape()
	} else {
		body = m.renderList()
	}
	if m.err != nil {
		body += "\n" + cliui.ErrorStyle.Render(m.err.Error())
	}
	return body + "\n" + browseMutedStyle.Render(m.help.View(m.keys))
}

func (m browseModel) renderList() string {
	var b strings.Builder
	b.WriteString(browseTitleStyle.Render("spool tapes"))
	b.WriteString(browseMutedStyle.Render(fmt.Sprintf("  %d recorded", len(m.tapes))))
	b.WriteString("\n")
	b.WriteString(renderRule(m.width))
	b.WriteString("\n")

	if len(m.tapes) == 0 {
		b.WriteString(browseMutedStyle.Render("no tapes"))
		b.WriteString("\n")
		return b.String()
	}

	start, end := window(m.cursor, len(m.tapes), m.listRows())
	for i := start; i < end; i++ {
		t := m.tapes[i]
		line := fmt.Sprintf("%-36s  %s  %-10s %-24s %s",
			t.ID,
			t.StartedAt.Local().Format("2006-01-02 15:04:05"),
			t.Vendor,
			ansi.Truncate(t.Model, 24, "…"),
			cliui.FormatDuration(t.Duration()),
		)
		line = ansi.Truncate(line, m.lineWidth()-4, "…")
		if i == m.cursor {
			b.WriteString(browseHighlightStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString(" " + outcome(t.Outcome))
		b.WriteString("\n")
	}
	return b.String()
}

func (m browseModel) renderTape() string {
	t := m.detail.tape

	var b strings.Builder
	b.WriteString(browseTitleStyle.Render(t.ID))
	b.WriteString("  " + outcome(t.Outcome))
	b.WriteString("\n")
	b.WriteString(browseMutedStyle.Render(fmt.Sprintf("%s · %s · %s · %s in / %s out · %d frames",
		t.Vendor,
		t.Model,
		cliui.FormatDuration(t.Duration()),
		tokens(t.Metadata.Stats.InTokens),
		tokens(t.Metadata.Stats.OutTokens),
		len(t.Frames),
	)))
	b.WriteString("\n")
	b.WriteString(renderRule(m.width))
	b.WriteString("\n")

	lines := m.detailLines()
	rows := m.detailRows()
	end := min(m.scroll+rows, len(lines))
	for _, line := range lines[m.scroll:end] {
		b.WriteString(ansi.Truncate(line, m.lineWidth(), "…"))
		b.WriteString("\n")
	}
	return b.String()
}

// detailLines lays out the replayed text, tool calls and issues of the
// open tape.
func (m browseModel) detailLines() []string {
	d := m.detail
	if d == nil {
		return nil
	}

	lines := []string{browseSectionStyle.Render("Text")}
	if d.text == "" {
		lines = append(lines, browseMutedStyle.Render("(no text)"))
	} else {
		lines = append(lines, strings.Split(strings.TrimRight(d.text, "\n"), "\n")...)
	}

	if len(d.toolCalls) > 0 {
		lines = append(lines, "", browseSectionStyle.Render(fmt.Sprintf("Tool calls (%d)", len(d.toolCalls))))
		for _, call := range d.toolCalls {
			lines = append(lines, cliui.NameStyle.Render(call.Name)+cliui.DimStyle.Render("("+call.Arguments+")"))
		}
	}

	if len(d.issues) > 0 {
		lines = append(lines, "", browseSectionStyle.Render(fmt.Sprintf("Issues (%d)", len(d.issues))))
		for _, issue := range d.issues {
			lines = append(lines, cliui.ErrorStyle.Render(issue.Symbol)+" "+cliui.DimStyle.Render(issue.Message))
		}
	}
	return lines
}

func (m browseModel) lineWidth() int {
	if m.width <= 0 {
		return 120
	}
	return m.width
}

func (m browseModel) listRows() int {
	if m.height <= 0 {
		return 20
	}
	return max(m.height-4, 1)
}

func (m browseModel) detailRows() int {
	if m.height <= 0 {
		return 40
	}
	return max(m.height-5, 1)
}

func loadTapesCmd(ctx context.Context, store tape.Recorder, limit int) tea.Cmd {
	return func() tea.Msg {
		tapes, err := store.List(ctx, limit)
		return tapesLoadedMsg{tapes: tapes, err: err}
	}
}

func replayTapeCmd(ctx context.Context, t *tape.Tape, policy *resilience.Policy) tea.Cmd {
	return func() tea.Msg {
		detail, err := replayDetail(ctx, t, policy)
		return tapeReplayedMsg{detail: detail, err: err}
	}
}

func replayDetail(ctx context.Context, t *tape.Tape, policy *resilience.Policy) (*tapeDetail, error) {
	actions, err := tape.Replay(ctx, t, policy)
	if err != nil {
		return nil, err
	}

	d := &tapeDetail{tape: t}
	var text strings.Builder
	for _, a := range actions {
		switch a := a.(type) {
		case llm.Text:
			text.WriteString(a.Fragment)
		case llm.ToolCall:
			d.toolCalls = append(d.toolCalls, a)
		case llm.Issue:
			d.issues = append(d.issues, a)
		}
	}
	d.text = text.String()
	return d, nil
}

// window returns the slice bounds of a page of rows that keeps cursor
// visible.
func window(cursor, total, rows int) (int, int) {
	if total <= rows {
		return 0, total
	}
	start := max(cursor-rows/2, 0)
	end := start + rows
	if end > total {
		end = total
		start = total - rows
	}
	return start, end
}

func renderRule(width int) string {
	if width <= 0 {
		width = 80
	}
	return browseDividerStyle.Render(strings.Repeat("─", width))
}

func clamp(value, maxValue int) int {
	if maxValue < 0 {
		return 0
	}
	return min(max(value, 0), maxValue)
}
