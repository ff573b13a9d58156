package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/pipeline"
)

var (
	submitSource  string
	submitFile    string
	submitTimeout time.Duration
	showTrace     bool
	llmProvider   string
	llmModel      string
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit [text]",
	Short: "Submit one claim and drive it through the workflow",
	Long: `Submit accepts a raw first-notice-of-loss text and drives the claim
through fact extraction, policy validation, fraud scoring and triage.

The text can be given as an argument, read from a file with --file, or
piped on stdin.

Example:
  claimflow submit "Car accident Jan 15 2024, damage $3500, policy POL-001"
  claimflow submit --file fnol.txt --trace
  cat fnol.eml | claimflow submit --source email`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitSource, "source", "cli", "submission source recorded on the claim")
	submitCmd.Flags().StringVar(&submitFile, "file", "", "read the submission text from a file")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 2*time.Minute, "overall workflow timeout")
	submitCmd.Flags().BoolVar(&showTrace, "trace", false, "print the full decision trail after processing")

	// LLM flags
	submitCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "text-generation provider (openai, anthropic, ollama)")
	submitCmd.Flags().StringVar(&llmModel, "llm-model", "", "model name")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	text, err := submissionText(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)

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

	claim, submitErr := o.SubmitClaim(ctx, text, submitSource)
	if claim != nil {
		printClaim(claim)
		if showTrace {
			fmt.Println()
			printTrail(o.Tracker(), claim.ID)
		}
	}
	if submitErr != nil {
		return fmt.Errorf("submit failed: %w", submitErr)
	}
	return nil
}

// submissionText resolves the input from argument, file or stdin
func submissionText(args []string) (string, error) {
	switch {
	case submitFile != "":
		content, err := os.ReadFile(submitFile)
		if err != nil {
			return "", fmt.Errorf("read submission file: %w", err)
		}
		return string(content), nil
	case len(args) == 1:
		return args[0], nil
	default:
		info, err := os.Stdin.Stat()
		if err == nil && info.Mode()&os.ModeCharDevice == 0 {
			content, err := io.ReadAll(os.Stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			return string(content), nil
		}
		return "", fmt.Errorf("no submission text: pass it as an argument, use --file, or pipe it on stdin")
	}
}

func applyLLMFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

func printClaim(claim *model.Claim) {
	fmt.Printf("✓ Claim %s\n", claim.ID)
	fmt.Printf("  Status:   %s\n", claim.Status)
	if claim.Summary != nil {
		fmt.Printf("  Type:     %s\n", claim.Summary.ClaimType)
		fmt.Printf("  Amount:   %.2f %s\n", claim.Summary.Amount, claim.Summary.Currency)
	}
	if claim.Routing != nil {
		fmt.Printf("  Queue:    %s (priority: %s)\n", claim.Routing.Queue, claim.Routing.Priority)
		if claim.Routing.Reason != "" {
			fmt.Printf("  Reason:   %s\n", claim.Routing.Reason)
		}
	}
	if claim.ReviewPending {
		fmt.Printf("  ⚠ Parked for human review\n")
	}
	if len(claim.Documents) > 0 {
		fmt.Printf("  Documents: %d\n", len(claim.Documents))
	}
	if strings.TrimSpace(claim.Source) != "" {
		fmt.Printf("  Source:   %s\n", claim.Source)
	}
}
