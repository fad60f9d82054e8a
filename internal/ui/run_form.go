package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/mcao2/contact-enrich/internal/config"
	"github.com/mcao2/contact-enrich/internal/prompt"
)

// RunForm collects what a run needs: the file, the variant and the event context.
type RunForm struct {
	form   *huh.Form
	result *RunRequest
}

// RunRequest is the submitted form
type RunRequest struct {
	InputPath  string
	OutputPath string
	Variant    string
	Topics     string
	Virtual    bool
}

// EventContext parses the free-text topics.
func (r RunRequest) EventContext() prompt.EventContext {
	return prompt.EventContext{
		Topics:  prompt.ParseTopics(r.Topics),
		Virtual: r.Virtual,
	}
}

// ResolveOutputPath returns the output path, defaulting to the variant's file
// name next to the input.
func (r RunRequest) ResolveOutputPath(v prompt.Variant) string {
	if p := strings.TrimSpace(r.OutputPath); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(strings.TrimSpace(r.InputPath)), v.OutputFile)
}

func validateInputPath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("a CSV file is required")
	}
	info, err := os.Stat(s)
	if err != nil {
		return errors.New("file not found")
	}
	if info.IsDir() {
		return errors.New("that is a directory")
	}
	return nil
}

// usesEventContext reports whether the named variant reads event topics.
func usesEventContext(name string) bool {
	v, err := prompt.Lookup(name)
	return err == nil && v.UsesTopics()
}

func NewRunForm(cfg *config.Config) *RunForm {
	result := &RunRequest{Variant: prompt.DefaultVariant}
	if cfg != nil {
		if cfg.Variant != "" {
			result.Variant = cfg.Variant
		}
		result.Topics = strings.Join(cfg.Event.Topics, ", ")
		result.Virtual = cfg.Event.Virtual
	}
	if h, err := config.LoadRunHistory(); err == nil {
		if last, ok := h.Last(); ok {
			result.InputPath = last.InputPath
		}
	}

	var options []huh.Option[string]
	for _, v := range prompt.Variants() {
		options = append(options, huh.NewOption(v.Name+": "+v.Description, v.Name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Contact list (CSV)").
				Placeholder("contacts.csv").
				Validate(validateInputPath).
				Value(&result.InputPath),

			huh.NewSelect[string]().
				Title("Variant").
				Options(options...).
				Value(&result.Variant),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Event topics (optional)").
				Description("Comma, semicolon or newline separated; variants use only the first few").
				Value(&result.Topics),

			huh.NewConfirm().
				Title("Virtual event?").
				Affirmative("Virtual").
				Negative("In person").
				Value(&result.Virtual),
		).WithHideFunc(func() bool { return !usesEventContext(result.Variant) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Output file (optional)").
				Placeholder("defaults next to the input").
				Value(&result.OutputPath),
		),
	)

	return &RunForm{
		form:   form,
		result: result,
	}
}

func (rf *RunForm) GetForm() *huh.Form {
	return rf.form
}

func (rf *RunForm) Result() RunRequest {
	return *rf.result
}
