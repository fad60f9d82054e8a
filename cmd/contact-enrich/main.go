package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcao2/contact-enrich/internal/config"
	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/ui"
)

var (
	verbose bool

	logger *zap.Logger

	// newGenerator is swapped out in tests.
	newGenerator = llm.NewGenerator
)

var rootCmd = &cobra.Command{
	Use:   "contact-enrich",
	Short: "Add an LLM-written column to every row of a contact list",
	Long: `contact-enrich reads a CSV contact list, asks a language model for one
short piece of text per contact (an intro line or an event hook) and writes
the list back out with the new column appended.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = buildLogger(cmd == cmd.Root())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

// buildLogger logs to stderr, or to a file when the TUI owns the terminal.
func buildLogger(toFile bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if toFile {
		path, err := config.LogPath()
		if err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(variantsCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadGenerator loads and validates the configuration and builds the client.
func loadGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := newGenerator(ctx, cfg.Settings())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return gen, nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	gen, err := loadGenerator(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	logger.Info("starting interactive session", zap.String("provider", cfg.LLM.Provider))

	p := tea.NewProgram(
		ui.NewModel(cfg, gen, logger),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interface error: %w", err)
	}
	return nil
}
