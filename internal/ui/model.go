package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/mcao2/contact-enrich/internal/config"
	"github.com/mcao2/contact-enrich/internal/enrich"
	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/prompt"
	"github.com/mcao2/contact-enrich/internal/table"
)

type State int

const (
	StateForm State = iota
	StateEnriching
	StateDone
	StateMessage
)

func (s State) String() string {
	switch s {
	case StateForm:
		return "Form"
	case StateEnriching:
		return "Enriching"
	case StateDone:
		return "Done"
	case StateMessage:
		return "Message"
	default:
		return "Unknown"
	}
}

type Model struct {
	state  State
	width  int
	height int
	styles Styles
	keys   KeyMap

	cfg    *config.Config
	gen    llm.Generator
	logger *zap.Logger
	ctx    context.Context

	runForm  *RunForm
	spinner  spinner.Model
	progress progress.Model
	preview  PreviewView

	variant    prompt.Variant
	inputPath  string
	outputPath string
	report     *enrich.Report

	current       int
	total         int
	failed        int
	statusMessage string
	messageType   string
}

// NewModel creates the UI. gen is the already-validated generation client.
func NewModel(cfg *config.Config, gen llm.Generator, logger *zap.Logger) *Model {
	if cfg == nil {
		cfg = &config.Config{Variant: prompt.DefaultVariant}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	theme := DefaultTheme

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary))

	return &Model{
		state:    StateForm,
		styles:   NewStyles(theme),
		keys:     DefaultKeyMap(),
		cfg:      cfg,
		gen:      gen,
		logger:   logger,
		ctx:      context.Background(),
		runForm:  NewRunForm(cfg),
		spinner:  s,
		progress: newProgress(),
	}
}

func newProgress() progress.Model {
	return progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.runForm.GetForm().Init(), m.spinner.Tick)
}

// ProgressMsg carries one row's progress and the channels to keep listening on.
type ProgressMsg struct {
	Progress enrich.Progress
	Channel  <-chan enrich.Progress
	Done     <-chan RunFinishedMsg
}

// RunFinishedMsg is sent when the run is over and the output file written.
type RunFinishedMsg struct {
	Report     *enrich.Report
	OutputPath string
	Err        error
}

// ErrorMsg reports a fatal problem that stopped a run before it started.
type ErrorMsg struct {
	Error error
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-8, 60)
		if m.state == StateDone {
			m.preview.SetWidth(msg.Width)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case ProgressMsg:
		m.current = msg.Progress.Current
		m.total = msg.Progress.Total
		m.failed = msg.Progress.Failed
		m.statusMessage = fmt.Sprintf("Processed %d/%d rows", m.current, m.total)
		cmd := m.progress.SetPercent(float64(m.current) / float64(m.total))
		return m, tea.Batch(cmd, waitForRunProgress(msg.Channel, msg.Done))

	case RunFinishedMsg:
		return m.finishRun(msg), nil

	case ErrorMsg:
		m.statusMessage = msg.Error.Error()
		m.messageType = "error"
		m.state = StateMessage
		return m, nil
	}

	if m.state == StateForm {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m *Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && keyMatches(k, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	form, cmd := m.runForm.GetForm().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.runForm.form = f
	}

	switch m.runForm.GetForm().State {
	case huh.StateCompleted:
		return m, m.startEnrichment(m.runForm.Result())
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case StateEnriching:
		if keyMatches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
	case StateDone:
		return m.handleDoneKeys(msg)
	case StateMessage:
		if keyMatches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		return m, m.resetForm()
	}
	return m, nil
}

func (m *Model) handleDoneKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Quit):
		return m, tea.Quit
	case keyMatches(msg, m.keys.Up):
		m.preview.MoveCursor(-1)
	case keyMatches(msg, m.keys.Down):
		m.preview.MoveCursor(1)
	case keyMatches(msg, m.keys.CopyText):
		m.copyToClipboard(m.preview.SelectedText(), fmt.Sprintf("Copied row %d", m.preview.Cursor()+1))
	case keyMatches(msg, m.keys.CopyPath):
		m.copyToClipboard(m.outputPath, "Copied output path")
	case keyMatches(msg, m.keys.NewRun):
		return m, m.resetForm()
	}
	return m, nil
}

func (m *Model) copyToClipboard(text, okMessage string) {
	if text == "" {
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.statusMessage = fmt.Sprintf("failed to copy to clipboard: %v", err)
		return
	}
	m.statusMessage = okMessage
}

func (m *Model) resetForm() tea.Cmd {
	m.runForm = NewRunForm(m.cfg)
	m.report = nil
	m.statusMessage = ""
	m.messageType = ""
	m.current, m.total, m.failed = 0, 0, 0
	width := m.progress.Width
	m.progress = newProgress()
	m.progress.Width = width
	m.state = StateForm
	return m.runForm.GetForm().Init()
}

// startEnrichment checks the input synchronously so fatal problems never
// reach the model, then runs the rows in the background.
func (m *Model) startEnrichment(req RunRequest) tea.Cmd {
	v, err := prompt.Lookup(req.Variant)
	if err != nil {
		return errorCmd(err)
	}

	tbl, err := table.ReadFile(strings.TrimSpace(req.InputPath))
	if err != nil {
		return errorCmd(err)
	}

	progressChan := make(chan enrich.Progress)
	done := make(chan RunFinishedMsg, 1)

	e := enrich.New(m.gen, v,
		enrich.WithEventContext(req.EventContext()),
		enrich.WithDelay(m.cfg.Delay),
		enrich.WithLogger(m.logger),
		enrich.WithProgress(func(p enrich.Progress) { progressChan <- p }),
	)
	if err := e.Check(tbl); err != nil {
		return errorCmd(err)
	}

	outputPath := req.ResolveOutputPath(v)
	if err := table.CheckOutputPath(strings.TrimSpace(req.InputPath), outputPath); err != nil {
		return errorCmd(err)
	}

	m.variant = v
	m.inputPath = strings.TrimSpace(req.InputPath)
	m.outputPath = outputPath
	m.state = StateEnriching
	m.current, m.total, m.failed = 0, tbl.Len(), 0
	m.statusMessage = fmt.Sprintf("Generating %d rows...", tbl.Len())

	writeOpts := table.WriteOptions{BOM: m.cfg.WriteBOM()}
	ctx := m.ctx
	logger := m.logger

	go func() {
		defer close(progressChan)
		report, err := e.Run(ctx, tbl)
		if err == nil {
			logger.Info("writing output", zap.String("path", outputPath), zap.String("run_id", report.RunID))
			err = table.WriteFile(outputPath, report.Table, writeOpts)
		}
		done <- RunFinishedMsg{Report: report, OutputPath: outputPath, Err: err}
	}()

	return tea.Batch(m.spinner.Tick, waitForRunProgress(progressChan, done))
}

func waitForRunProgress(ch <-chan enrich.Progress, done <-chan RunFinishedMsg) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return <-done
		}
		return ProgressMsg{Progress: p, Channel: ch, Done: done}
	}
}

func errorCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Error: err}
	}
}

func (m *Model) finishRun(msg RunFinishedMsg) *Model {
	if msg.Err != nil {
		m.statusMessage = msg.Err.Error()
		m.messageType = "error"
		m.state = StateMessage
		return m
	}

	m.report = msg.Report
	m.outputPath = msg.OutputPath
	m.recordRun(msg)
	label := ""
	if len(m.variant.RequiredColumns) > 0 {
		label = m.variant.RequiredColumns[0]
	}
	width := m.width
	if width == 0 {
		width = 100
	}
	m.preview = NewPreviewView(msg.Report.Table, label, m.variant.OutputColumn, width)
	m.preview.UpdateTableStyles(m.styles.theme)
	m.statusMessage = fmt.Sprintf("%d intros generated, %d failed. Saved to %s",
		msg.Report.Succeeded, msg.Report.Failed, msg.OutputPath)
	m.state = StateDone
	return m
}

func (m *Model) recordRun(msg RunFinishedMsg) {
	err := config.RecordRun(config.RunEntry{
		RunID:      msg.Report.RunID,
		Variant:    m.variant.Name,
		InputPath:  m.inputPath,
		OutputPath: msg.OutputPath,
		Rows:       len(msg.Report.Outcomes),
		Succeeded:  msg.Report.Succeeded,
		Failed:     msg.Report.Failed,
		Source:     "tui",
	})
	if err != nil {
		m.logger.Warn("failed to record run", zap.Error(err))
	}
}

func (m *Model) View() string {
	var content string
	centered := true

	switch m.state {
	case StateForm:
		content = m.formView()
	case StateEnriching:
		content = m.enrichingView()
	case StateDone:
		content = m.doneView()
		centered = false
	case StateMessage:
		content = m.messageView()
	default:
		return "Unknown state"
	}

	if centered && m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}

	return content
}

func (m *Model) formView() string {
	title := m.styles.Title.Render("Contact Enrich")
	help := m.renderHelpLine([]helpEntry{{"enter", "next"}, {"shift+tab", "back"}, {"ctrl+c", "quit"}})
	return lipgloss.JoinVertical(lipgloss.Left, title, m.runForm.GetForm().View(), "", help)
}

func (m *Model) enrichingView() string {
	status := fmt.Sprintf("%s %s", m.spinner.View(), m.statusMessage)
	if m.failed > 0 {
		status += m.styles.Error.Render(fmt.Sprintf("  (%d failed)", m.failed))
	}

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Generating "+m.variant.OutputColumn),
			m.progress.View(),
			"",
			m.styles.Normal.Render(status),
		),
	)

	help := m.renderHelpLine([]helpEntry{{"ctrl+c", "abort"}})
	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

func (m *Model) doneView() string {
	header := m.styles.Success.Render("✓ " + m.statusMessage)
	help := m.renderHelpLine([]helpEntry{
		{"j/k", "navigate"},
		{"y", "copy text"},
		{"c", "copy path"},
		{"n", "new run"},
		{"q", "quit"},
	})

	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		header,
		"",
		m.preview.View(),
		m.preview.DetailView(m.styles),
		"",
		help,
	)
}

func (m *Model) messageView() string {
	var icon, title string
	var titleStyle lipgloss.Style

	if m.messageType == "error" {
		icon = "✗"
		title = "Error"
		titleStyle = m.styles.Error
	} else {
		icon = "✓"
		title = "Success"
		titleStyle = m.styles.Success
	}

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render(icon+" "+title),
			"",
			m.styles.Normal.Render(m.statusMessage),
		),
	)

	help := m.renderHelpLine([]helpEntry{{"any key", "continue"}})
	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

type helpEntry struct {
	key  string
	desc string
}

func (m *Model) renderHelpLine(entries []helpEntry) string {
	var parts []string
	sep := m.styles.HelpSep.Render(" · ")
	for _, e := range entries {
		parts = append(parts, m.styles.HelpKey.Render(e.key)+" "+m.styles.HelpDesc.Render(e.desc))
	}
	return strings.Join(parts, sep)
}
