package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

// Agent names surfaced in decision records. The fallback name matters: audit
// consumers distinguish text-scored from rule-scored assessments by it.
const (
	FraudScorerName   = "fraud-scorer"
	FraudFallbackName = "fraud-rules-fallback"
)

const fraudSystemPrompt = "You are an insurance fraud analyst. You assess how likely a claim is fraudulent based on its facts and known fraud patterns. You respond only with JSON."

// FraudAssessment is the typed result of fraud scoring
type FraudAssessment struct {
	Score      float64  `json:"score"` // 0.0 (clean) – 1.0 (certain fraud)
	Indicators []string `json:"indicators,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FraudScorer assesses fraud likelihood, optionally consulting a similarity
// index of known fraud patterns for supporting evidence
type FraudScorer struct {
	provider   llm.Provider
	similarity SimilarityIndex // nil when no index is configured
	matches    int
}

// NewFraudScorer creates a new fraud scorer
func NewFraudScorer(provider llm.Provider, similarity SimilarityIndex, matches int) *FraudScorer {
	if matches <= 0 {
		matches = 5
	}
	return &FraudScorer{provider: provider, similarity: similarity, matches: matches}
}

// Score asks the provider for a fraud assessment. Evidence snippets gathered
// from the similarity index are returned for the audit trail even when
// scoring fails.
func (a *FraudScorer) Score(ctx context.Context, summary *model.ClaimSummary, docCount int, attempt int) (*FraudAssessment, Invocation, []string, error) {
	evidence := a.gatherEvidence(ctx, summary)

	prompt := withClarification(a.buildPrompt(summary, docCount, evidence), attempt)
	inv := Invocation{Prompt: prompt, SystemPrompt: fraudSystemPrompt}

	resp, err := a.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: fraudSystemPrompt,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, inv, evidence, fmt.Errorf("fraud scoring: %w", err)
	}
	inv.RawResponse = resp.Text
	inv.Model = resp.Model
	inv.TokensUsed = resp.TokensUsed

	fields, err := parse.Parse(resp.Text, 0)
	if err != nil {
		return nil, inv, evidence, err
	}

	score, ok := getFloat(fields, "score")
	if !ok {
		return nil, inv, evidence, &model.SchemaViolationError{Field: "score", Reason: "missing or unparseable"}
	}
	if score < 0 || score > 1 {
		return nil, inv, evidence, &model.SchemaViolationError{Field: "score", Reason: fmt.Sprintf("%v outside [0,1]", score)}
	}

	return &FraudAssessment{
		Score:      score,
		Indicators: getStringSlice(fields, "indicators"),
		Reasoning:  getString(fields, "reasoning"),
		Confidence: confidenceOf(fields),
	}, inv, evidence, nil
}

// RuleFallback is the deterministic heuristic used when text-based scoring
// is unrecoverable. Intentionally conservative: it flags the classic red
// flags and nothing subtle.
func (a *FraudScorer) RuleFallback(summary *model.ClaimSummary, docCount int) *FraudAssessment {
	score := 0.0
	var indicators []string

	if summary.Amount >= 50000 {
		score += 0.3
		indicators = append(indicators, "high claimed amount")
	} else if summary.Amount >= 10000 {
		score += 0.15
		indicators = append(indicators, "elevated claimed amount")
	}

	if summary.ReportedDate.Sub(summary.IncidentDate) > 30*24*time.Hour {
		score += 0.2
		indicators = append(indicators, "reported more than 30 days after incident")
	}

	if summary.PolicyRef == "" {
		score += 0.2
		indicators = append(indicators, "no policy reference")
	}

	if docCount == 0 {
		score += 0.15
		indicators = append(indicators, "no supporting documents")
	}

	if score > 1 {
		score = 1
	}

	return &FraudAssessment{
		Score:      score,
		Indicators: indicators,
		Reasoning:  "deterministic rule-based assessment",
	}
}

func (a *FraudScorer) gatherEvidence(ctx context.Context, summary *model.ClaimSummary) []string {
	if a.similarity == nil {
		return nil
	}

	patterns, err := a.similarity.FindSimilar(ctx, summary.Description, a.matches)
	if err != nil {
		// Evidence is optional input; scoring proceeds without it
		return []string{fmt.Sprintf("similarity lookup failed: %v", err)}
	}

	var evidence []string
	for _, p := range patterns {
		evidence = append(evidence, fmt.Sprintf("pattern %s (distance %.3f): %v", p.PatternID, p.Distance, p.Metadata["label"]))
	}
	return evidence
}

func (a *FraudScorer) buildPrompt(summary *model.ClaimSummary, docCount int, evidence []string) string {
	evidenceSection := "(no similar known fraud patterns found)"
	if len(evidence) > 0 {
		evidenceSection = "- " + strings.Join(evidence, "\n- ")
	}

	return fmt.Sprintf(`Assess the fraud likelihood of this claim.

Claim:
- Type: %s
- Incident date: %s
- Reported date: %s
- Amount: %s
- Location: %s
- Description: %s
- Supporting documents attached: %d

Similar known fraud patterns:
%s

Respond with a JSON object with exactly these keys:
- score: fraud likelihood from 0.0 to 1.0
- indicators: array of short strings naming the red flags you found
- reasoning: one or two sentences explaining the score
- confidence: your confidence from 0.0 to 1.0`,
		summary.ClaimType,
		summary.IncidentDate.Format("2006-01-02"),
		summary.ReportedDate.Format("2006-01-02"),
		fmtAmount(summary.Amount, summary.Currency),
		summary.Location,
		truncate(summary.Description, 500),
		docCount,
		evidenceSection,
	)
}
