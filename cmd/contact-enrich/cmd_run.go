package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcao2/contact-enrich/internal/config"
	"github.com/mcao2/contact-enrich/internal/enrich"
	"github.com/mcao2/contact-enrich/internal/prompt"
	"github.com/mcao2/contact-enrich/internal/table"
	"github.com/mcao2/contact-enrich/internal/ui"
)

var (
	inputPath   string
	outputPath  string
	variantName string
	topics      []string
	virtual     bool
	delay       time.Duration
	noBOM       bool
	previewRows int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a CSV file without the interactive interface",
	Long: `Reads the input CSV, generates the derived column for every row in order
and writes the result. A row whose generation fails gets "Error: <reason>"
in the new column; the run always continues to the last row.

Example:
  contact-enrich run -i contacts.csv --variant event-invite --topic "AI" --topic "Cloud" --virtual`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the prompt variants and the columns they need",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, v := range prompt.Variants() {
			fmt.Fprintf(out, "%s\n  %s\n  columns: %s\n  output:  %q -> %s\n",
				v.Name, v.Description, strings.Join(v.RequiredColumns, ", "), v.OutputColumn, v.OutputFile)
			if v.UsesTopics() {
				fmt.Fprintf(out, "  topics:  first %d of --topic\n", v.TopicLimit)
			}
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.SaveExampleConfig()
		if err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\n", path)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input CSV file (required)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output CSV file (default: the variant's file next to the input)")
	runCmd.Flags().StringVar(&variantName, "variant", "", "Prompt variant (see 'contact-enrich variants')")
	runCmd.Flags().StringSliceVar(&topics, "topic", nil, "Event topic, repeatable")
	runCmd.Flags().BoolVar(&virtual, "virtual", false, "The event is virtual")
	runCmd.Flags().DurationVar(&delay, "delay", 0, "Pause between generation calls")
	runCmd.Flags().BoolVar(&noBOM, "no-bom", false, "Write plain UTF-8 without a byte order mark")
	runCmd.Flags().IntVar(&previewRows, "preview", 5, "Rows to print after the run")
	runCmd.MarkFlagRequired("input")
}

// applyFlags overrides the loaded configuration with the flags that were set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("variant") {
		cfg.Variant = variantName
	}
	if flags.Changed("topic") {
		cfg.Event.Topics = topics
	}
	if flags.Changed("virtual") {
		cfg.Event.Virtual = virtual
	}
	if flags.Changed("delay") {
		cfg.Delay = delay
	}
	if flags.Changed("no-bom") {
		bom := !noBOM
		cfg.OutputBOM = &bom
	}
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	gen, err := loadGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	v, err := prompt.Lookup(cfg.Variant)
	if err != nil {
		return err
	}

	tbl, err := table.ReadFile(inputPath)
	if err != nil {
		return err
	}

	out := outputPath
	if out == "" {
		out = filepath.Join(filepath.Dir(inputPath), v.OutputFile)
	}
	if err := table.CheckOutputPath(inputPath, out); err != nil {
		return err
	}

	e := enrich.New(gen, v,
		enrich.WithEventContext(cfg.EventContext()),
		enrich.WithDelay(cfg.Delay),
		enrich.WithLogger(logger),
	)
	report, err := e.Run(ctx, tbl)
	if err != nil {
		return err
	}

	if err := table.WriteFile(out, report.Table, table.WriteOptions{BOM: cfg.WriteBOM()}); err != nil {
		return err
	}

	logger.Debug("output written", zap.String("path", out), zap.String("run_id", report.RunID))

	err = config.RecordRun(config.RunEntry{
		RunID:      report.RunID,
		Variant:    v.Name,
		InputPath:  inputPath,
		OutputPath: out,
		Rows:       len(report.Outcomes),
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		Source:     "cli",
	})
	if err != nil {
		logger.Warn("failed to record run", zap.Error(err))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d succeeded, %d failed in %s\n", report.Succeeded, report.Failed, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Saved to %s\n", out)
	printPreview(cmd, report, previewRows)
	return nil
}

func printPreview(cmd *cobra.Command, report *enrich.Report, n int) {
	if n <= 0 {
		return
	}
	w := cmd.OutOrStdout()
	n = min(n, len(report.Outcomes))
	if n > 0 {
		fmt.Fprintln(w)
	}
	for i := 0; i < n; i++ {
		text := strings.ReplaceAll(report.Outcomes[i].Field(), "\n", " ")
		fmt.Fprintf(w, "%3d  %s\n", i+1, ui.Truncate(text, 100))
	}
}
