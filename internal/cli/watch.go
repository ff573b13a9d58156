package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/covassure/claimflow/internal/pipeline"
	"github.com/covassure/claimflow/internal/watch"
)

var (
	watchDelete bool
	watchSettle int
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and submit dropped files as claims",
	Long: `Watch monitors an intake directory. Every eligible file (.txt, .md,
.html, .eml) dropped into it is submitted as one claim once writes have
settled. Files already present at startup are ingested first.

Runs until interrupted.

Example:
  claimflow watch ./intake
  claimflow watch ./intake --delete --settle-ms 500`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchDelete, "delete", false, "remove files after successful ingestion")
	watchCmd.Flags().IntVar(&watchSettle, "settle-ms", 0, "quiet window before ingesting a file (default: config settle_millis)")

	// LLM flags shared with submit
	watchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "text-generation provider (openai, anthropic, ollama)")
	watchCmd.Flags().StringVar(&llmModel, "llm-model", "", "model name")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)
	cfg.Watch.Dir = args[0]
	if watchDelete {
		cfg.Watch.DeleteIngested = true
	}
	if watchSettle > 0 {
		cfg.Watch.SettleMillis = watchSettle
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	o := pipeline.NewOrchestrator(cfg, pipeline.Deps{Provider: provider, Logger: logger})
	w, err := watch.New(cfg.Watch, o, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", cfg.Watch.Dir)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(os.Stderr, "Stopped.")
	return nil
}
