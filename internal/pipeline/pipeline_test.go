package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/agents"
	"github.com/covassure/claimflow/internal/bus"
	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

const (
	factsJSON   = `{"claim_type":"auto","incident_date":"2024-01-15","reported_date":"2024-01-20","amount":3500,"currency":"USD","location":"Springfield","description":"Rear-end collision at a stop light","claimant_name":"J. Doe","policy_ref":"POL-001"}`
	policyOK    = `{"valid": true, "reason": "auto policy POL-001 in force", "confidence": 0.9}`
	policyBad   = `{"valid": false, "reason": "policy lapsed before incident"}`
	fraudLow    = `{"score": 0.15, "indicators": [], "reasoning": "consistent details", "confidence": 0.85}`
	fraudHigh   = `{"score": 0.92, "indicators": ["amount inconsistent"], "reasoning": "multiple red flags", "confidence": 0.8}`
	routingJSON = `{"queue": "fast-track", "priority": "low", "reason": "small, clean claim"}`
	docCheckOK  = `{"authentic": true, "issues": [], "confidence": 0.9}`
	docCheckBad = `{"authentic": false, "issues": ["metadata stripped"], "confidence": 0.7}`
	garbage     = "I cannot help with that."
)

// sequenceProvider returns canned responses in call order. The bus is
// synchronous, so agent calls for one submission happen in a fixed order.
type sequenceProvider struct {
	responses []string
	calls     int
	served    int           // responses handed out; forced failures consume no response
	errs      map[int]error // call index (0-based) → forced failure
}

func (p *sequenceProvider) Name() string                     { return "sequence" }
func (p *sequenceProvider) IsAvailable(context.Context) bool { return true }

func (p *sequenceProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	idx := p.calls
	p.calls++
	if err, ok := p.errs[idx]; ok {
		return nil, err
	}
	ri := p.served
	p.served++
	if ri >= len(p.responses) {
		ri = len(p.responses) - 1
	}
	return &llm.GenerateResponse{Text: p.responses[ri], Model: "seq-model", TokensUsed: 5}, nil
}

func newTestOrchestrator(provider llm.Provider) *Orchestrator {
	cfg := model.DefaultConfig()
	cfg.Retry.BackoffMillis = 0
	return NewOrchestrator(cfg, Deps{Provider: provider, Logger: zap.NewNop()})
}

func TestSubmitClaim_FullWorkflow(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudLow, routingJSON}}

	// Recorders registered before the orchestrator's own handlers observe
	// each event ahead of the follow-on work it triggers
	b := bus.New(zap.NewNop())
	var kinds []model.EventKind
	for _, k := range []model.EventKind{
		model.EventClaimSubmitted, model.EventFactsExtracted, model.EventPolicyValidated,
		model.EventFraudScored, model.EventClaimRouted,
	} {
		b.Subscribe(k, func(ctx context.Context, evt model.DomainEvent) error {
			kinds = append(kinds, evt.Kind)
			return nil
		})
	}

	cfg := model.DefaultConfig()
	cfg.Retry.BackoffMillis = 0
	o := NewOrchestrator(cfg, Deps{Provider: provider, Bus: b, Logger: zap.NewNop()})

	claim, err := o.SubmitClaim(context.Background(), "Car accident Jan 15 2024, $3500, policy POL-001", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}

	if claim.Status != model.StatusTriaged {
		t.Fatalf("expected triaged, got %v", claim.Status)
	}
	if claim.Routing == nil || claim.Routing.Queue != agents.QueueFastTrack {
		t.Errorf("expected fast-track routing, got %+v", claim.Routing)
	}
	if claim.Summary == nil || claim.Summary.Amount != 3500 {
		t.Errorf("expected extracted summary, got %+v", claim.Summary)
	}

	records := o.Tracker().ByClaim(claim.ID)
	if len(records) < 4 {
		t.Fatalf("expected at least 4 decisions, got %d", len(records))
	}
	wantOrder := []model.DecisionKind{
		model.DecisionFactExtraction, model.DecisionPolicyValidation,
		model.DecisionFraudAssessment, model.DecisionRouting,
	}
	for i, want := range wantOrder {
		if records[i].Kind != want {
			t.Errorf("decision %d: expected %v, got %v", i, want, records[i].Kind)
		}
		if !records[i].Success {
			t.Errorf("decision %d (%v) unexpectedly failed: %s", i, records[i].Kind, records[i].ErrorMessage)
		}
	}
	if last := records[len(records)-1]; last.Kind != model.DecisionWorkflowStep {
		t.Errorf("expected a closing workflow-step decision, got %v", last.Kind)
	}
	if failed := o.Tracker().Failed(claim.ID); len(failed) != 0 {
		t.Errorf("expected no failed decisions, got %d", len(failed))
	}

	wantEvents := []model.EventKind{
		model.EventClaimSubmitted, model.EventFactsExtracted, model.EventPolicyValidated,
		model.EventFraudScored, model.EventClaimRouted,
	}
	if len(kinds) != len(wantEvents) {
		t.Fatalf("expected %d events, got %v", len(wantEvents), kinds)
	}
	for i, want := range wantEvents {
		if kinds[i] != want {
			t.Errorf("event %d: expected %v, got %v", i, want, kinds[i])
		}
	}
}

func TestSubmitClaim_DecisionChainIsConnected(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudLow, routingJSON}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Car accident, $3500, policy POL-001", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}

	records := o.Tracker().ByClaim(claim.ID, model.DecisionPolicyValidation)
	if len(records) != 1 {
		t.Fatalf("expected one policy decision, got %d", len(records))
	}
	chain := o.Tracker().Chain(records[0].ID)
	if len(chain) < 4 {
		t.Fatalf("expected chain to span the workflow, got %d records", len(chain))
	}
	kinds := map[model.DecisionKind]bool{}
	for _, r := range chain {
		kinds[r.Kind] = true
	}
	for _, want := range []model.DecisionKind{
		model.DecisionFactExtraction, model.DecisionPolicyValidation,
		model.DecisionFraudAssessment, model.DecisionRouting,
	} {
		if !kinds[want] {
			t.Errorf("chain missing %v", want)
		}
	}
}

func TestSubmitClaim_PolicyRejection(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyBad}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Claim for lapsed policy", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	if claim.Status != model.StatusRejected {
		t.Fatalf("expected rejected, got %v", claim.Status)
	}
	if provider.calls != 2 {
		t.Errorf("expected no fraud or routing calls after rejection, got %d calls", provider.calls)
	}
}

func TestSubmitClaim_RetriesParseFailure(t *testing.T) {
	provider := &sequenceProvider{responses: []string{garbage, factsJSON, policyOK, fraudLow, routingJSON}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Car accident, $3500", "test")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if claim.Status != model.StatusTriaged {
		t.Fatalf("expected triaged after retry, got %v", claim.Status)
	}

	records := o.Tracker().ByClaim(claim.ID, model.DecisionFactExtraction)
	if len(records) != 1 || !records[0].Success {
		t.Fatalf("expected one successful extraction decision, got %+v", records)
	}
	if len(records[0].Context.ParseAttempts) == 0 {
		t.Error("expected the failed parse attempt in the decision context")
	}
}

func TestSubmitClaim_RetriesCollaboratorFailure(t *testing.T) {
	provider := &sequenceProvider{
		responses: []string{factsJSON, policyOK, fraudLow, routingJSON},
		errs:      map[int]error{0: errors.New("connection reset")},
	}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Car accident, $3500", "test")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if claim.Status != model.StatusTriaged {
		t.Fatalf("expected triaged, got %v", claim.Status)
	}
}

func TestSubmitClaim_SchemaViolationNotRetried(t *testing.T) {
	// Amount missing: a semantic failure, so retrying cannot help
	provider := &sequenceProvider{responses: []string{`{"claim_type":"auto","incident_date":"2024-01-15"}`}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Vague accident report", "test")

	var sv *model.SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("expected SchemaViolationError, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", provider.calls)
	}
	if claim.Status != model.StatusDraft {
		t.Errorf("expected claim left in draft, got %v", claim.Status)
	}
	if failed := o.Tracker().Failed(claim.ID); len(failed) != 1 {
		t.Errorf("expected one failed decision on record, got %d", len(failed))
	}
}

func TestSubmitClaim_ExhaustedRetriesSurfaceParseError(t *testing.T) {
	provider := &sequenceProvider{responses: []string{garbage}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Car accident", "test")

	var parseErr *parse.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError after exhausted retries, got %v", err)
	}
	if provider.calls != 3 {
		t.Errorf("expected 1+2 attempts, got %d", provider.calls)
	}
	if claim.Status != model.StatusDraft {
		t.Errorf("expected claim left in draft, got %v", claim.Status)
	}
}

func TestFraudFallback_WorkflowDoesNotStall(t *testing.T) {
	// Fraud scorer babbles on every attempt; rules must take over and the
	// claim must still get routed
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, garbage, garbage, garbage, routingJSON}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Car accident, $3500, policy POL-001", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	if claim.Status != model.StatusTriaged {
		t.Fatalf("expected triaged despite scorer failure, got %v", claim.Status)
	}

	records := o.Tracker().ByClaim(claim.ID, model.DecisionFraudAssessment)
	if len(records) != 1 {
		t.Fatalf("expected one fraud decision, got %d", len(records))
	}
	rec := records[0]
	if rec.AgentName != agents.FraudFallbackName {
		t.Errorf("expected fallback agent, got %q", rec.AgentName)
	}
	if !rec.Success {
		t.Error("fallback assessment should be recorded as a success")
	}
	if rec.ErrorMessage == "" {
		t.Error("expected the scorer failure preserved in the error message")
	}
}

func TestReviewParking(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudHigh, routingJSON}}
	o := newTestOrchestrator(provider)

	var reviewRequested bool
	o.bus.Subscribe(model.EventReviewRequested, func(ctx context.Context, evt model.DomainEvent) error {
		reviewRequested = true
		return nil
	})

	claim, err := o.SubmitClaim(context.Background(), "Suspicious high-value claim", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	if claim.Status != model.StatusPolicyValidated || !claim.ReviewPending {
		t.Fatalf("expected claim parked at policy_validated, got %v pending=%v", claim.Status, claim.ReviewPending)
	}
	if !reviewRequested {
		t.Error("expected review_requested event")
	}
	if provider.calls != 3 {
		t.Errorf("expected no routing call while parked, got %d calls", provider.calls)
	}

	t.Run("approval resumes routing", func(t *testing.T) {
		resumed, err := o.CompleteReview(context.Background(), claim.ID, true, "adjuster-7", "verified with claimant")
		if err != nil {
			t.Fatalf("CompleteReview: %v", err)
		}
		if resumed.Status != model.StatusTriaged || resumed.ReviewPending {
			t.Fatalf("expected triaged after approval, got %v pending=%v", resumed.Status, resumed.ReviewPending)
		}
		reviews := o.Tracker().ByClaim(claim.ID, model.DecisionHumanReview)
		if len(reviews) != 2 {
			t.Fatalf("expected pending and resolved review decisions, got %d", len(reviews))
		}
		if reviews[0].Value != "pending" {
			t.Errorf("expected pending marker first, got %v", reviews[0].Value)
		}
		if reviews[1].AgentName != "adjuster-7" {
			t.Errorf("expected reviewer recorded as agent, got %q", reviews[1].AgentName)
		}
	})
}

func TestReviewDenialRejects(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudHigh}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Suspicious claim", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}

	denied, err := o.CompleteReview(context.Background(), claim.ID, false, "adjuster-7", "claimant unreachable")
	if err != nil {
		t.Fatalf("CompleteReview: %v", err)
	}
	if denied.Status != model.StatusRejected {
		t.Fatalf("expected rejected, got %v", denied.Status)
	}
	if provider.calls != 3 {
		t.Errorf("expected no routing call after denial, got %d calls", provider.calls)
	}
}

func TestCompleteReview_NotPending(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudLow, routingJSON}}
	o := newTestOrchestrator(provider)

	claim, err := o.SubmitClaim(context.Background(), "Clean claim", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}

	_, err = o.CompleteReview(context.Background(), claim.ID, true, "", "")
	var ist *model.InvalidStateTransitionError
	if !errors.As(err, &ist) {
		t.Fatalf("expected InvalidStateTransitionError, got %v", err)
	}
}

func TestProcessingLifecycle(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudLow, routingJSON}}
	o := newTestOrchestrator(provider)
	ctx := context.Background()

	claim, err := o.SubmitClaim(ctx, "Car accident, $3500", "test")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}

	claim, err = o.StartProcessing(ctx, claim.ID)
	if err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if claim.Status != model.StatusProcessing {
		t.Fatalf("expected processing, got %v", claim.Status)
	}

	claim, err = o.CompleteClaim(ctx, claim.ID)
	if err != nil {
		t.Fatalf("CompleteClaim: %v", err)
	}
	if claim.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %v", claim.Status)
	}

	// Completed is terminal
	if _, err := o.StartProcessing(ctx, claim.ID); err == nil {
		t.Error("expected error restarting a completed claim")
	}
}

func TestAddDocument(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantValidation model.DocumentValidation
		wantEvent      model.EventKind
	}{
		{"authentic document verified", docCheckOK, model.DocumentVerified, model.EventDocumentVerified},
		{"suspect document flagged", docCheckBad, model.DocumentFlagged, model.EventDocumentFlagged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &sequenceProvider{responses: []string{tt.response}}
			o := newTestOrchestrator(provider)
			ctx := context.Background()

			var seen []model.EventKind
			o.bus.Subscribe(tt.wantEvent, func(ctx context.Context, evt model.DomainEvent) error {
				seen = append(seen, evt.Kind)
				return nil
			})

			claim := model.NewClaim("direct claim", "test")
			if err := o.Claims().Save(claim); err != nil {
				t.Fatal(err)
			}

			doc, err := o.AddDocument(ctx, claim.ID, []byte("content"), "damage.jpg", model.DocumentTypePhoto)
			if err != nil {
				t.Fatalf("AddDocument: %v", err)
			}

			stored, err := o.Claims().FindByID(claim.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(stored.Documents) != 1 || stored.Documents[0].ID != doc.ID {
				t.Fatalf("expected one attached document, got %+v", stored.Documents)
			}
			if stored.Documents[0].Validation != tt.wantValidation {
				t.Errorf("expected %v, got %v", tt.wantValidation, stored.Documents[0].Validation)
			}
			if len(seen) != 1 {
				t.Errorf("expected %v event, got %v", tt.wantEvent, seen)
			}

			checks := o.Tracker().ByClaim(claim.ID, model.DecisionDocumentCheck)
			if len(checks) != 1 || !checks[0].Success {
				t.Errorf("expected one successful document check decision, got %+v", checks)
			}
		})
	}
}

func TestSubmitClaim_EmptyInput(t *testing.T) {
	o := newTestOrchestrator(&sequenceProvider{responses: []string{factsJSON}})

	if _, err := o.SubmitClaim(context.Background(), "   \n\t  ", "test"); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestSubmitClaim_NormalizesHTMLInput(t *testing.T) {
	provider := &sequenceProvider{responses: []string{factsJSON, policyOK, fraudLow, routingJSON}}
	o := newTestOrchestrator(provider)

	html := `<html><body><script>alert(1)</script><p>Car accident on Jan 15, damage $3500</p></body></html>`
	claim, err := o.SubmitClaim(context.Background(), html, "email")
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	if strings.Contains(claim.RawInput, "alert(1)") || strings.Contains(claim.RawInput, "<p>") {
		t.Errorf("expected markup stripped, got %q", claim.RawInput)
	}
	if !strings.Contains(claim.RawInput, "Car accident") {
		t.Errorf("expected visible text kept, got %q", claim.RawInput)
	}
}
