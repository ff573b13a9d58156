// Package pipeline runs the claim workflow. The orchestrator is the only
// component that mutates claims: it invokes the reasoning agents, applies
// their outcomes as state transitions, records every decision in the audit
// tracker and publishes domain events on the bus.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/agents"
	"github.com/covassure/claimflow/internal/audit"
	"github.com/covassure/claimflow/internal/bus"
	"github.com/covassure/claimflow/internal/ingest"
	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/store"
)

// Deps are the orchestrator's collaborators. Zero-value fields get in-memory
// defaults, so tests and embedders only wire what they care about.
type Deps struct {
	Claims     store.ClaimStore
	Documents  store.DocumentStore
	Tracker    *audit.Tracker
	Bus        *bus.Bus
	Provider   llm.Provider
	Similarity agents.SimilarityIndex
	Logger     *zap.Logger
}

// Orchestrator drives claims through the workflow:
//
//	submit → extract facts → validate policy → score fraud → triage
//
// with rejection, document checks and human-review parking along the way.
type Orchestrator struct {
	claims   store.ClaimStore
	docs     store.DocumentStore
	tracker  *audit.Tracker
	bus      *bus.Bus
	facts    *agents.FactExtractor
	policy   *agents.PolicyChecker
	fraud    *agents.FraudScorer
	router   *agents.Router
	docCheck *agents.DocumentChecker
	retry    *retryer
	locks    *keyedMutex
	logger   *zap.Logger
	cfg      model.Config
}

// NewOrchestrator wires the workflow and subscribes its event handlers.
// A nil cfg means defaults.
func NewOrchestrator(cfg *model.Config, deps Deps) *Orchestrator {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Claims == nil {
		deps.Claims = store.NewMemoryClaimStore()
	}
	if deps.Documents == nil {
		deps.Documents = store.NewMemoryDocumentStore()
	}
	if deps.Tracker == nil {
		deps.Tracker = audit.NewTracker()
	}
	if deps.Bus == nil {
		deps.Bus = bus.New(deps.Logger)
	}

	o := &Orchestrator{
		claims:   deps.Claims,
		docs:     deps.Documents,
		tracker:  deps.Tracker,
		bus:      deps.Bus,
		facts:    agents.NewFactExtractor(deps.Provider),
		policy:   agents.NewPolicyChecker(deps.Provider),
		fraud:    agents.NewFraudScorer(deps.Provider, deps.Similarity, cfg.Fraud.SimilarityMatches),
		router:   agents.NewRouter(deps.Provider),
		docCheck: agents.NewDocumentChecker(deps.Provider),
		retry:    newRetryer(cfg.Retry, deps.Logger),
		locks:    newKeyedMutex(),
		logger:   deps.Logger,
		cfg:      *cfg,
	}

	o.bus.Subscribe(model.EventFactsExtracted, o.onFactsExtracted)
	o.bus.Subscribe(model.EventFraudScored, o.onFraudScored)
	o.bus.Subscribe(model.EventDocumentAdded, o.onDocumentAdded)
	return o
}

// Tracker exposes the audit trail for queries
func (o *Orchestrator) Tracker() *audit.Tracker { return o.tracker }

// Claims exposes the claim store for queries
func (o *Orchestrator) Claims() store.ClaimStore { return o.claims }

// SubmitClaim accepts a raw first-notice-of-loss text, extracts structured
// facts from it and drives the claim as far through the workflow as the
// facts allow. The returned claim reflects the state after all synchronous
// workflow steps have run.
func (o *Orchestrator) SubmitClaim(ctx context.Context, rawInput, source string) (*model.Claim, error) {
	normalized := ingest.NormalizeText(rawInput)
	if normalized == "" {
		return nil, fmt.Errorf("submit claim: empty input")
	}

	claim := model.NewClaim(normalized, source)
	if err := o.claims.Save(claim); err != nil {
		return nil, fmt.Errorf("submit claim: %w", err)
	}
	o.publish(ctx, model.NewDomainEvent(model.EventClaimSubmitted, claim.ID, map[string]any{"source": source}))
	o.logger.Info("claim submitted", zap.String("claim_id", claim.ID), zap.String("source", source))

	auditCtx := o.tracker.Begin().AddInput("raw_input", normalized)

	var summary *model.ClaimSummary
	err := o.retry.do(ctx, agents.FactExtractorName, func(ctx context.Context, attempt int) error {
		s, inv, err := o.facts.Extract(ctx, normalized, attempt)
		auditCtx.SetPrompt(inv.Prompt).SetRawResponse(inv.RawResponse)
		if err != nil {
			auditCtx.AddParseAttempt(fmt.Sprintf("attempt %d: %v", attempt, err))
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		o.recordFailure(auditCtx, claim.ID, agents.FactExtractorName, model.DecisionFactExtraction, nil, err)
		return o.reload(claim.ID), fmt.Errorf("extract facts for claim %s: %w", claim.ID, err)
	}

	unlock := o.locks.lock(claim.ID)
	evt, err := claim.ExtractFacts(summary)
	if err == nil {
		err = o.claims.Save(claim)
	}
	unlock()
	if err != nil {
		return o.reload(claim.ID), fmt.Errorf("apply extracted facts: %w", err)
	}

	if _, err := o.tracker.Record(auditCtx, audit.Entry{
		ClaimID:   claim.ID,
		Agent:     agents.FactExtractorName,
		Kind:      model.DecisionFactExtraction,
		Value:     summary,
		Reasoning: "structured facts extracted from claim submission",
		Success:   true,
	}); err != nil {
		return o.reload(claim.ID), err
	}

	if errs := o.publish(ctx, evt); len(errs) > 0 {
		return o.reload(claim.ID), errors.Join(errs...)
	}
	return o.reload(claim.ID), nil
}

// AddDocument stores supporting evidence, attaches it to the claim and
// triggers an authenticity check
func (o *Orchestrator) AddDocument(ctx context.Context, claimID string, content []byte, filename string, docType model.DocumentType) (model.Document, error) {
	doc, err := o.docs.Store(ctx, claimID, content, filename, docType)
	if err != nil {
		return model.Document{}, fmt.Errorf("store document: %w", err)
	}

	unlock := o.locks.lock(claimID)
	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		unlock()
		return model.Document{}, err
	}
	evt, err := claim.AddDocument(doc)
	if err == nil {
		err = o.claims.Save(claim)
	}
	unlock()
	if err != nil {
		return model.Document{}, err
	}

	if errs := o.publish(ctx, evt); len(errs) > 0 {
		return doc, errors.Join(errs...)
	}
	return doc, nil
}

// CompleteReview resolves a parked human review. Approval resumes triage;
// denial rejects the claim.
func (o *Orchestrator) CompleteReview(ctx context.Context, claimID string, approved bool, reviewer, notes string) (*model.Claim, error) {
	if reviewer == "" {
		reviewer = "human-reviewer"
	}
	unlock := o.locks.lock(claimID)
	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		unlock()
		return nil, err
	}
	evt, err := claim.CompleteReview(approved, notes)
	var rejectEvt *model.DomainEvent
	if err == nil && !approved {
		e, rerr := claim.Reject("denied in human review: " + notes)
		if rerr != nil {
			err = rerr
		} else {
			rejectEvt = &e
		}
	}
	if err == nil {
		err = o.claims.Save(claim)
	}
	unlock()
	if err != nil {
		return nil, err
	}

	if _, err := o.tracker.Record(nil, audit.Entry{
		ClaimID:      claimID,
		Agent:        reviewer,
		Kind:         model.DecisionHumanReview,
		Value:        approved,
		Reasoning:    notes,
		Dependencies: o.lastDecisionID(claimID, model.DecisionHumanReview),
		Success:      true,
	}); err != nil {
		return nil, err
	}

	o.publish(ctx, evt)
	if rejectEvt != nil {
		o.publish(ctx, *rejectEvt)
		return o.reload(claimID), nil
	}

	if err := o.routeClaim(ctx, claimID); err != nil {
		return o.reload(claimID), err
	}
	return o.reload(claimID), nil
}

// StartProcessing moves a triaged claim into active processing
func (o *Orchestrator) StartProcessing(ctx context.Context, claimID string) (*model.Claim, error) {
	return o.step(ctx, claimID, "begin processing", func(c *model.Claim) (model.DomainEvent, error) {
		return c.BeginProcessing()
	})
}

// CompleteClaim finishes a processing claim
func (o *Orchestrator) CompleteClaim(ctx context.Context, claimID string) (*model.Claim, error) {
	return o.step(ctx, claimID, "complete", func(c *model.Claim) (model.DomainEvent, error) {
		return c.Complete()
	})
}

// step applies one guarded transition under the claim lock and publishes
// the resulting event
func (o *Orchestrator) step(ctx context.Context, claimID, name string, fn func(*model.Claim) (model.DomainEvent, error)) (*model.Claim, error) {
	unlock := o.locks.lock(claimID)
	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		unlock()
		return nil, err
	}
	evt, err := fn(claim)
	if err == nil {
		err = o.claims.Save(claim)
	}
	unlock()
	if err != nil {
		return nil, err
	}

	if _, err := o.tracker.Record(nil, audit.Entry{
		ClaimID:   claimID,
		Agent:     "workflow",
		Kind:      model.DecisionWorkflowStep,
		Value:     string(claim.Status),
		Reasoning: name,
		Success:   true,
	}); err != nil {
		return nil, err
	}

	o.publish(ctx, evt)
	return claim, nil
}

func (o *Orchestrator) publish(ctx context.Context, evt model.DomainEvent) []error {
	return o.bus.Publish(ctx, evt)
}

func (o *Orchestrator) reload(claimID string) *model.Claim {
	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		return nil
	}
	return claim
}

func (o *Orchestrator) recordFailure(auditCtx *audit.Context, claimID, agent string, kind model.DecisionKind, deps []string, cause error) {
	if _, err := o.tracker.Record(auditCtx, audit.Entry{
		ClaimID:      claimID,
		Agent:        agent,
		Kind:         kind,
		Dependencies: deps,
		Success:      false,
		ErrorMessage: cause.Error(),
	}); err != nil {
		o.logger.Error("record decision failure", zap.Error(err))
	}
}

// lastDecisionID returns the most recent decision ID of the given kinds so
// follow-on decisions can declare their dependencies
func (o *Orchestrator) lastDecisionID(claimID string, kinds ...model.DecisionKind) []string {
	records := o.tracker.ByClaim(claimID, kinds...)
	if len(records) == 0 {
		return nil
	}
	return []string{records[len(records)-1].ID}
}
