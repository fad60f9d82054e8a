package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mcao2/contact-enrich/internal/config"
	"github.com/mcao2/contact-enrich/internal/enrich"
	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/prompt"
	"github.com/mcao2/contact-enrich/internal/table"
)

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "contact-enrich-test")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	os.Setenv("CONTACT_ENRICH_CONFIG", filepath.Join(tmpDir, "config.yaml"))

	os.Exit(m.Run())
}

func writeContacts(t *testing.T, header string, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.csv")
	content := header + "\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write contacts: %v", err)
	}
	return path
}

// drive executes cmd and feeds every resulting message back into the model,
// skipping animation ticks.
func drive(m *Model, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, progress.FrameMsg, tea.QuitMsg:
		default:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func echoGenerator(calls *atomic.Int32) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("  intro %d  ", n), nil
	})
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestNewModel(t *testing.T) {
	m := NewModel(nil, nil, nil)
	if m.state != StateForm {
		t.Errorf("expected initial state StateForm, got %v", m.state)
	}
	if m.runForm == nil {
		t.Fatal("expected a run form")
	}
	if got := m.runForm.Result().Variant; got != prompt.DefaultVariant {
		t.Errorf("expected default variant %q, got %q", prompt.DefaultVariant, got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateForm, "Form"},
		{StateEnriching, "Enriching"},
		{StateDone, "Done"},
		{StateMessage, "Message"},
		{State(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestErrorMsgAndRecovery(t *testing.T) {
	m := NewModel(nil, nil, nil)

	m.Update(ErrorMsg{Error: errors.New("boom")})
	if m.state != StateMessage {
		t.Fatalf("expected StateMessage, got %v", m.state)
	}
	if m.statusMessage != "boom" {
		t.Errorf("expected status 'boom', got %q", m.statusMessage)
	}
	if !strings.Contains(m.View(), "boom") {
		t.Error("expected message view to show the error")
	}

	m.Update(keyRune('x'))
	if m.state != StateForm {
		t.Errorf("expected any key to return to the form, got %v", m.state)
	}
}

func TestForceQuitFromForm(t *testing.T) {
	m := NewModel(nil, nil, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected ctrl+c to quit")
	}
}

func TestEnrichmentRun(t *testing.T) {
	input := writeContacts(t, "Name,"+prompt.ColLinkedInURL,
		"Ada,https://linkedin.com/in/ada",
		"Alan,https://linkedin.com/in/alan",
	)

	var calls atomic.Int32
	cfg := &config.Config{Variant: prompt.DefaultVariant}
	m := NewModel(cfg, echoGenerator(&calls), nil)

	drive(m, m.startEnrichment(RunRequest{InputPath: input, Variant: prompt.DefaultVariant}))

	if m.state != StateDone {
		t.Fatalf("expected StateDone, got %v (%s)", m.state, m.statusMessage)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 generator calls, got %d", calls.Load())
	}
	if m.report == nil || m.report.Succeeded != 2 || m.report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", m.report)
	}

	wantPath := filepath.Join(filepath.Dir(input), "contacts_with_intros.csv")
	if m.outputPath != wantPath {
		t.Errorf("expected output %q, got %q", wantPath, m.outputPath)
	}

	out, err := table.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if out.ColumnIndex("Personalised Intro") < 0 {
		t.Fatalf("expected output column, header is %v", out.Header)
	}
	if got := out.Record(0).Get("Personalised Intro"); got != "intro 1" {
		t.Errorf("expected trimmed intro, got %q", got)
	}

	if !strings.Contains(m.View(), "Saved to") {
		t.Error("expected done view to report the output path")
	}

	if got := NewRunForm(cfg).Result().InputPath; got != input {
		t.Errorf("expected next form to remember %q, got %q", input, got)
	}
}

func TestEnrichmentMissingColumns(t *testing.T) {
	input := writeContacts(t, "Name,Email", "Ada,ada@example.com")

	var calls atomic.Int32
	m := NewModel(&config.Config{}, echoGenerator(&calls), nil)

	drive(m, m.startEnrichment(RunRequest{InputPath: input, Variant: prompt.DefaultVariant}))

	if m.state != StateMessage {
		t.Fatalf("expected StateMessage, got %v", m.state)
	}
	if !strings.Contains(m.statusMessage, prompt.ColLinkedInURL) {
		t.Errorf("expected missing column in message, got %q", m.statusMessage)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no generator calls, got %d", calls.Load())
	}
}

func TestEnrichmentUnknownVariant(t *testing.T) {
	input := writeContacts(t, prompt.ColLinkedInURL, "https://linkedin.com/in/ada")
	m := NewModel(&config.Config{}, echoGenerator(new(atomic.Int32)), nil)

	drive(m, m.startEnrichment(RunRequest{InputPath: input, Variant: "nope"}))

	if m.state != StateMessage {
		t.Fatalf("expected StateMessage, got %v", m.state)
	}
}

func TestEnrichmentFailedRowsStillWritten(t *testing.T) {
	input := writeContacts(t, prompt.ColLinkedInURL, "a", "b", "c")
	output := filepath.Join(t.TempDir(), "out.csv")

	var calls atomic.Int32
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		if calls.Add(1) == 2 {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	})
	noBOM := false
	m := NewModel(&config.Config{OutputBOM: &noBOM}, gen, nil)

	drive(m, m.startEnrichment(RunRequest{InputPath: input, OutputPath: output, Variant: prompt.DefaultVariant}))

	if m.state != StateDone {
		t.Fatalf("expected StateDone, got %v (%s)", m.state, m.statusMessage)
	}
	if m.report.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", m.report.Failed)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.Contains(string(data), "Error: quota exceeded") {
		t.Errorf("expected error marker in output, got:\n%s", data)
	}
	if strings.HasPrefix(string(data), "\ufeff") {
		t.Error("expected no BOM when disabled")
	}
}

func TestDoneKeys(t *testing.T) {
	input := writeContacts(t, prompt.ColLinkedInURL, "a", "b", "c")
	m := NewModel(&config.Config{}, echoGenerator(new(atomic.Int32)), nil)
	drive(m, m.startEnrichment(RunRequest{InputPath: input, Variant: prompt.DefaultVariant}))
	if m.state != StateDone {
		t.Fatalf("expected StateDone, got %v", m.state)
	}

	m.Update(keyRune('j'))
	m.Update(keyRune('j'))
	m.Update(keyRune('j'))
	if m.preview.Cursor() != 2 {
		t.Errorf("expected cursor clamped at 2, got %d", m.preview.Cursor())
	}
	m.Update(keyRune('k'))
	if m.preview.Cursor() != 1 {
		t.Errorf("expected cursor 1, got %d", m.preview.Cursor())
	}
	if got := m.preview.SelectedText(); got != "intro 2" {
		t.Errorf("expected selected text 'intro 2', got %q", got)
	}

	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected q to quit")
	}

	m.Update(keyRune('n'))
	if m.state != StateForm {
		t.Errorf("expected n to start a new run, got %v", m.state)
	}
	if m.report != nil {
		t.Error("expected report to be cleared")
	}
}

func TestProgressMsgUpdatesCounters(t *testing.T) {
	m := NewModel(nil, nil, nil)
	m.state = StateEnriching

	ch := make(chan enrich.Progress)
	close(ch)
	done := make(chan RunFinishedMsg, 1)

	m.Update(ProgressMsg{Progress: enrich.Progress{Current: 3, Total: 10, Failed: 1}, Channel: ch, Done: done})
	if m.current != 3 || m.total != 10 || m.failed != 1 {
		t.Errorf("unexpected counters: %d/%d failed %d", m.current, m.total, m.failed)
	}
	if !strings.Contains(m.View(), "3/10") {
		t.Error("expected enriching view to show progress")
	}
}

func TestWindowResize(t *testing.T) {
	m := NewModel(nil, nil, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("expected 120x40, got %dx%d", m.width, m.height)
	}
	if m.View() == "" {
		t.Error("expected form view to render")
	}
}

func TestNewRunResetsProgress(t *testing.T) {
	input := writeContacts(t, prompt.ColLinkedInURL, "a")
	m := NewModel(&config.Config{}, echoGenerator(new(atomic.Int32)), nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	drive(m, m.startEnrichment(RunRequest{InputPath: input, Variant: prompt.DefaultVariant}))
	if m.state != StateDone {
		t.Fatalf("expected StateDone, got %v", m.state)
	}
	if m.progress.Percent() != 1 {
		t.Fatalf("expected a full bar after the run, got %v", m.progress.Percent())
	}

	m.Update(keyRune('n'))
	if m.progress.Percent() != 0 {
		t.Errorf("expected an empty bar for the next run, got %v", m.progress.Percent())
	}
	if m.progress.Width != 60 {
		t.Errorf("expected bar width to survive the reset, got %d", m.progress.Width)
	}
}

func TestEnrichmentRefusesToOverwriteInput(t *testing.T) {
	input := writeContacts(t, prompt.ColLinkedInURL, "a")
	before, err := os.ReadFile(input)
	if err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	m := NewModel(&config.Config{}, echoGenerator(&calls), nil)
	drive(m, m.startEnrichment(RunRequest{InputPath: input, OutputPath: input, Variant: prompt.DefaultVariant}))

	if m.state != StateMessage {
		t.Fatalf("expected StateMessage, got %v", m.state)
	}
	if !strings.Contains(m.statusMessage, "overwrite the input") {
		t.Errorf("unexpected message %q", m.statusMessage)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no generator calls, got %d", calls.Load())
	}
	after, _ := os.ReadFile(input)
	if string(after) != string(before) {
		t.Error("input file was modified")
	}
}
