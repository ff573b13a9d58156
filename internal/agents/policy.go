package agents

import (
	"context"
	"fmt"

	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

// PolicyCheckerName identifies the agent in decision records
const PolicyCheckerName = "policy-checker"

const policySystemPrompt = "You are an insurance policy analyst. You judge whether a claim falls under policy coverage. You respond only with JSON."

// PolicyOutcome is the typed result of a coverage check
type PolicyOutcome struct {
	Valid      bool     `json:"valid"`
	Reason     string   `json:"reason"`
	PolicyRef  string   `json:"policy_ref,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// PolicyChecker validates a claim against policy coverage
type PolicyChecker struct {
	provider llm.Provider
}

// NewPolicyChecker creates a new policy checker
func NewPolicyChecker(provider llm.Provider) *PolicyChecker {
	return &PolicyChecker{provider: provider}
}

// Check asks the provider for a coverage judgment
func (a *PolicyChecker) Check(ctx context.Context, summary *model.ClaimSummary, attempt int) (*PolicyOutcome, Invocation, error) {
	prompt := withClarification(a.buildPrompt(summary), attempt)
	inv := Invocation{Prompt: prompt, SystemPrompt: policySystemPrompt}

	resp, err := a.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: policySystemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, inv, fmt.Errorf("policy validation: %w", err)
	}
	inv.RawResponse = resp.Text
	inv.Model = resp.Model
	inv.TokensUsed = resp.TokensUsed

	fields, err := parse.Parse(resp.Text, 0)
	if err != nil {
		return nil, inv, err
	}

	valid, ok := getBool(fields, "valid")
	if !ok {
		return nil, inv, &model.SchemaViolationError{Field: "valid", Reason: "missing or unparseable"}
	}

	return &PolicyOutcome{
		Valid:      valid,
		Reason:     getString(fields, "reason"),
		PolicyRef:  getString(fields, "policy_ref"),
		Confidence: confidenceOf(fields),
	}, inv, nil
}

func (a *PolicyChecker) buildPrompt(summary *model.ClaimSummary) string {
	policyRef := summary.PolicyRef
	if policyRef == "" {
		policyRef = "(none provided)"
	}
	return fmt.Sprintf(`Judge whether this claim is covered under the referenced policy.

Claim:
- Type: %s
- Incident date: %s
- Reported date: %s
- Amount: %s
- Location: %s
- Description: %s
- Policy reference: %s

A claim without any policy reference is not valid. A claim reported more
than 90 days after the incident requires justification in the description.

Respond with a JSON object with exactly these keys:
- valid: true or false
- reason: one-sentence justification
- policy_ref: the policy reference you validated against, or ""
- confidence: your confidence from 0.0 to 1.0`,
		summary.ClaimType,
		summary.IncidentDate.Format("2006-01-02"),
		summary.ReportedDate.Format("2006-01-02"),
		fmtAmount(summary.Amount, summary.Currency),
		summary.Location,
		truncate(summary.Description, 500),
		policyRef,
	)
}
