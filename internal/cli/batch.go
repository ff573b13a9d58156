package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/pipeline"
	"github.com/covassure/claimflow/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchSource  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Submit many claims from a file in parallel",
	Long: `Batch reads one raw submission per line and processes them
concurrently. Lines starting with '#' are skipped. Each claim runs the
full workflow; unrelated claims never wait on each other.

Example:
  claimflow batch submissions.txt
  claimflow batch submissions.txt --concurrency 8 --timeout 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: config batch_workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchSource, "source", "batch", "submission source recorded on each claim")

	// LLM flags shared with submit
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "text-generation provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)
	if concurrency > 0 {
		cfg.Concurrency.BatchWorkers = concurrency
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

	raws, err := worker.ReadSubmissionsFile(file)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Claimflow Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Submissions:  %d\n", len(raws))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.BatchWorkers)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	o := pipeline.NewOrchestrator(cfg, pipeline.Deps{Provider: provider, Logger: logger})
	results := worker.NewBatchSubmitter(o, cfg.Concurrency.BatchWorkers).Process(ctx, raws, batchSource)

	byStatus := map[model.Status]int{}
	parked := 0
	failures := 0
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", firstLine(result.Raw), result.Error)
			continue
		}
		byStatus[result.Claim.Status]++
		if result.Claim.ReviewPending {
			parked++
		}
		fmt.Fprintf(os.Stderr, "✓ %s → %s\n", result.Claim.ID, result.Claim.Status)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d submissions\n", len(results))
	for status, n := range byStatus {
		fmt.Fprintf(os.Stderr, "  %-10s  %d\n", status+":", n)
	}
	if parked > 0 {
		fmt.Fprintf(os.Stderr, "  Parked for review: %d\n", parked)
	}
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", failures)
	fmt.Fprintf(os.Stderr, "\n")

	if failures > 0 {
		return fmt.Errorf("%d of %d submissions failed", failures, len(results))
	}
	return nil
}
