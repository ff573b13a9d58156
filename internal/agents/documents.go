package agents

import (
	"context"
	"fmt"

	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

// DocumentCheckerName identifies the agent in decision records
const DocumentCheckerName = "document-checker"

const documentSystemPrompt = "You are an insurance document examiner. You judge whether an attached document is plausibly authentic evidence for a claim. You respond only with JSON."

// DocumentCheck is the typed result of an authenticity check
type DocumentCheck struct {
	Authentic  bool     `json:"authentic"`
	Issues     []string `json:"issues,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// DocumentChecker runs the authenticity side flow for attached documents
type DocumentChecker struct {
	provider llm.Provider
}

// NewDocumentChecker creates a new document checker
func NewDocumentChecker(provider llm.Provider) *DocumentChecker {
	return &DocumentChecker{provider: provider}
}

// Check asks the provider for an authenticity judgment on document metadata.
// Content inspection belongs to the document-storage collaborator; the core
// only reasons over the reference.
func (a *DocumentChecker) Check(ctx context.Context, claim *model.Claim, doc model.Document, attempt int) (*DocumentCheck, Invocation, error) {
	prompt := withClarification(a.buildPrompt(claim, doc), attempt)
	inv := Invocation{Prompt: prompt, SystemPrompt: documentSystemPrompt}

	resp, err := a.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: documentSystemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, inv, fmt.Errorf("document check: %w", err)
	}
	inv.RawResponse = resp.Text
	inv.Model = resp.Model
	inv.TokensUsed = resp.TokensUsed

	fields, err := parse.Parse(resp.Text, 0)
	if err != nil {
		return nil, inv, err
	}

	authentic, ok := getBool(fields, "authentic")
	if !ok {
		return nil, inv, &model.SchemaViolationError{Field: "authentic", Reason: "missing or unparseable"}
	}

	return &DocumentCheck{
		Authentic:  authentic,
		Issues:     getStringSlice(fields, "issues"),
		Confidence: confidenceOf(fields),
	}, inv, nil
}

func (a *DocumentChecker) buildPrompt(claim *model.Claim, doc model.Document) string {
	claimType := "(facts not yet extracted)"
	if claim.Summary != nil {
		claimType = claim.Summary.ClaimType
	}
	return fmt.Sprintf(`Judge whether this document is plausible evidence for the claim.

Claim type: %s
Document:
- Type: %s
- Filename: %s
- Size: %d bytes

Respond with a JSON object with exactly these keys:
- authentic: true or false
- issues: array of short strings naming any problems, empty if none
- confidence: your confidence from 0.0 to 1.0`,
		claimType,
		doc.Type,
		doc.Filename,
		doc.SizeBytes,
	)
}
