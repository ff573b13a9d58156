package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

// FactExtractorName identifies the agent in decision records
const FactExtractorName = "fact-extractor"

const factSystemPrompt = "You are an insurance claim intake analyst. You read free-text claim submissions and extract structured facts. You respond only with JSON."

// FactExtractor recovers a structured claim summary from raw submission text
type FactExtractor struct {
	provider llm.Provider
}

// NewFactExtractor creates a new fact extractor
func NewFactExtractor(provider llm.Provider) *FactExtractor {
	return &FactExtractor{provider: provider}
}

// Extract asks the provider for structured facts and validates them into a
// ClaimSummary. A parse.ParseError is retryable by the caller; a
// model.SchemaViolationError is not.
func (a *FactExtractor) Extract(ctx context.Context, rawInput string, attempt int) (*model.ClaimSummary, Invocation, error) {
	prompt := withClarification(a.buildPrompt(rawInput), attempt)
	inv := Invocation{Prompt: prompt, SystemPrompt: factSystemPrompt}

	resp, err := a.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: factSystemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, inv, fmt.Errorf("fact extraction: %w", err)
	}
	inv.RawResponse = resp.Text
	inv.Model = resp.Model
	inv.TokensUsed = resp.TokensUsed

	fields, err := parse.Parse(resp.Text, 0)
	if err != nil {
		return nil, inv, err
	}

	incident, ok := getDate(fields, "incident_date")
	if !ok {
		return nil, inv, &model.SchemaViolationError{Field: "incident_date", Reason: "missing or unparseable"}
	}
	reported, _ := getDate(fields, "reported_date")

	amount, ok := getFloat(fields, "amount")
	if !ok {
		return nil, inv, &model.SchemaViolationError{Field: "amount", Reason: "missing or unparseable"}
	}

	currency := getString(fields, "currency")
	if currency == "" {
		currency = "USD"
	}

	summary, err := model.NewClaimSummary(
		getString(fields, "claim_type"),
		incident,
		reported,
		amount,
		currency,
		getString(fields, "location"),
		getString(fields, "description"),
		getString(fields, "claimant_name"),
		getString(fields, "policy_ref"),
	)
	if err != nil {
		return nil, inv, err
	}

	return summary, inv, nil
}

func (a *FactExtractor) buildPrompt(rawInput string) string {
	return fmt.Sprintf(`Extract the structured facts of this insurance claim submission.

Submission:
%s

Today is %s.

Respond with a JSON object with exactly these keys:
- claim_type: one of "auto", "property", "health", "liability", "travel", "other"
- incident_date: YYYY-MM-DD
- reported_date: YYYY-MM-DD (today if not stated)
- amount: claimed amount as a number
- currency: ISO 4217 code (default "USD")
- location: where the incident happened, or ""
- description: one-sentence summary of the incident
- claimant_name: the claimant's name, or ""
- policy_ref: the policy number if present, or ""`, truncate(rawInput, 6000), time.Now().UTC().Format("2006-01-02"))
}
