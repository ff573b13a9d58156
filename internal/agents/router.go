package agents

import (
	"context"
	"fmt"

	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

// RouterName identifies the agent in decision records
const RouterName = "claim-router"

const routerSystemPrompt = "You are an insurance claim triage specialist. You assign validated claims to the right processing queue. You respond only with JSON."

// Queues a claim can be routed to
const (
	QueueFastTrack     = "fast-track"
	QueueStandard      = "standard"
	QueueInvestigation = "investigation"
	QueueSpecialist    = "specialist"
)

var knownQueues = map[string]bool{
	QueueFastTrack:     true,
	QueueStandard:      true,
	QueueInvestigation: true,
	QueueSpecialist:    true,
}

var knownPriorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
	"urgent": true,
}

// Router decides which queue a validated, fraud-scored claim belongs in
type Router struct {
	provider llm.Provider
}

// NewRouter creates a new router
func NewRouter(provider llm.Provider) *Router {
	return &Router{provider: provider}
}

// Route asks the provider for a routing decision
func (a *Router) Route(ctx context.Context, summary *model.ClaimSummary, fraud *FraudAssessment, attempt int) (*model.RoutingDecision, Invocation, error) {
	prompt := withClarification(a.buildPrompt(summary, fraud), attempt)
	inv := Invocation{Prompt: prompt, SystemPrompt: routerSystemPrompt}

	resp, err := a.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: routerSystemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, inv, fmt.Errorf("routing: %w", err)
	}
	inv.RawResponse = resp.Text
	inv.Model = resp.Model
	inv.TokensUsed = resp.TokensUsed

	fields, err := parse.Parse(resp.Text, 0)
	if err != nil {
		return nil, inv, err
	}

	queue := getString(fields, "queue")
	if queue == "" {
		queue = QueueStandard
	}
	if !knownQueues[queue] {
		return nil, inv, &model.SchemaViolationError{Field: "queue", Reason: fmt.Sprintf("unknown queue %q", queue)}
	}

	priority := getString(fields, "priority")
	if priority == "" {
		priority = "medium"
	}
	if !knownPriorities[priority] {
		return nil, inv, &model.SchemaViolationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", priority)}
	}

	return &model.RoutingDecision{
		Queue:    queue,
		Priority: priority,
		Reason:   getString(fields, "reason"),
	}, inv, nil
}

func (a *Router) buildPrompt(summary *model.ClaimSummary, fraud *FraudAssessment) string {
	return fmt.Sprintf(`Assign this validated claim to a processing queue.

Claim:
- Type: %s
- Amount: %s
- Description: %s
- Fraud score: %.2f
- Fraud indicators: %v

Queues:
- fast-track: low amount, clean fraud score, routine claim type
- standard: the default
- investigation: elevated fraud score or suspicious indicators
- specialist: complex or unusual claims needing expert handling

Respond with a JSON object with exactly these keys:
- queue: one of "fast-track", "standard", "investigation", "specialist"
- priority: one of "low", "medium", "high", "urgent"
- reason: one-sentence justification`,
		summary.ClaimType,
		fmtAmount(summary.Amount, summary.Currency),
		truncate(summary.Description, 500),
		fraud.Score,
		fraud.Indicators,
	)
}
