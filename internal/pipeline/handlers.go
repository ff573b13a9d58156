package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/agents"
	"github.com/covassure/claimflow/internal/audit"
	"github.com/covassure/claimflow/internal/model"
)

// onFactsExtracted validates policy coverage and, when the claim survives,
// scores it for fraud
func (o *Orchestrator) onFactsExtracted(ctx context.Context, evt model.DomainEvent) error {
	claim, err := o.claims.FindByID(evt.ClaimID)
	if err != nil {
		return err
	}
	if claim.Status != model.StatusFactsExtracted {
		return nil
	}

	deps := o.lastDecisionID(claim.ID, model.DecisionFactExtraction)
	auditCtx := o.tracker.Begin().AddInput("summary", claim.Summary)

	var outcome *agents.PolicyOutcome
	err = o.retry.do(ctx, agents.PolicyCheckerName, func(ctx context.Context, attempt int) error {
		out, inv, err := o.policy.Check(ctx, claim.Summary, attempt)
		auditCtx.SetPrompt(inv.Prompt).SetRawResponse(inv.RawResponse)
		if err != nil {
			auditCtx.AddParseAttempt(fmt.Sprintf("attempt %d: %v", attempt, err))
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		o.recordFailure(auditCtx, claim.ID, agents.PolicyCheckerName, model.DecisionPolicyValidation, deps, err)
		return fmt.Errorf("validate policy for claim %s: %w", claim.ID, err)
	}

	policyRec, err := o.tracker.Record(auditCtx, audit.Entry{
		ClaimID:      claim.ID,
		Agent:        agents.PolicyCheckerName,
		Kind:         model.DecisionPolicyValidation,
		Value:        outcome,
		Reasoning:    outcome.Reason,
		Confidence:   outcome.Confidence,
		Dependencies: deps,
		Success:      true,
	})
	if err != nil {
		return err
	}

	next, err := o.applyTransition(evt.ClaimID, func(c *model.Claim) (model.DomainEvent, error) {
		return c.ValidatePolicy(outcome.Valid, outcome.Reason)
	})
	if err != nil {
		return err
	}
	o.publish(ctx, next)

	if !outcome.Valid {
		o.logger.Info("claim rejected by policy validation",
			zap.String("claim_id", claim.ID), zap.String("reason", outcome.Reason))
		return nil
	}

	return o.scoreFraud(ctx, evt.ClaimID, policyRec.ID)
}

// scoreFraud invokes the fraud scorer, falling back to deterministic rules
// when the scorer cannot produce a usable assessment
func (o *Orchestrator) scoreFraud(ctx context.Context, claimID, policyDecisionID string) error {
	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		return err
	}

	auditCtx := o.tracker.Begin().
		AddInput("summary", claim.Summary).
		AddInput("document_count", len(claim.Documents))

	var assessment *agents.FraudAssessment
	var evidence []string
	scoreErr := o.retry.do(ctx, agents.FraudScorerName, func(ctx context.Context, attempt int) error {
		a, inv, ev, err := o.fraud.Score(ctx, claim.Summary, len(claim.Documents), attempt)
		auditCtx.SetPrompt(inv.Prompt).SetRawResponse(inv.RawResponse)
		evidence = ev
		if err != nil {
			auditCtx.AddParseAttempt(fmt.Sprintf("attempt %d: %v", attempt, err))
			return err
		}
		assessment = a
		return nil
	})
	for _, ev := range evidence {
		auditCtx.AddEvidence(ev)
	}

	agentName := agents.FraudScorerName
	errMsg := ""
	if scoreErr != nil {
		// The workflow never stalls on fraud scoring; rules take over
		assessment = o.fraud.RuleFallback(claim.Summary, len(claim.Documents))
		agentName = agents.FraudFallbackName
		errMsg = scoreErr.Error()
		o.logger.Warn("fraud scorer unavailable, using rule fallback",
			zap.String("claim_id", claimID), zap.Error(scoreErr))
	}

	rec, err := o.tracker.Record(auditCtx, audit.Entry{
		ClaimID:      claimID,
		Agent:        agentName,
		Kind:         model.DecisionFraudAssessment,
		Value:        assessment,
		Reasoning:    assessment.Reasoning,
		Confidence:   assessment.Confidence,
		Dependencies: []string{policyDecisionID},
		Success:      true,
		ErrorMessage: errMsg,
	})
	if err != nil {
		return err
	}

	fraudEvt := model.NewDomainEvent(model.EventFraudScored, claimID, map[string]any{
		"score":       assessment.Score,
		"agent":       agentName,
		"decision_id": rec.ID,
	})
	if errs := o.publish(ctx, fraudEvt); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// onFraudScored parks high-risk claims for human review and routes the rest
func (o *Orchestrator) onFraudScored(ctx context.Context, evt model.DomainEvent) error {
	claim, err := o.claims.FindByID(evt.ClaimID)
	if err != nil {
		return err
	}
	if claim.Status != model.StatusPolicyValidated || claim.ReviewPending {
		return nil
	}

	score, _ := evt.Payload["score"].(float64)
	if score >= o.cfg.Fraud.ReviewThreshold {
		reason := fmt.Sprintf("fraud score %.2f at or above review threshold %.2f", score, o.cfg.Fraud.ReviewThreshold)
		next, err := o.applyTransition(evt.ClaimID, func(c *model.Claim) (model.DomainEvent, error) {
			return c.RequestReview(reason)
		})
		if err != nil {
			return err
		}
		if _, err := o.tracker.Record(nil, audit.Entry{
			ClaimID:      evt.ClaimID,
			Agent:        "workflow",
			Kind:         model.DecisionHumanReview,
			Value:        "pending",
			Reasoning:    reason,
			Dependencies: o.lastDecisionID(evt.ClaimID, model.DecisionFraudAssessment),
			Success:      true,
		}); err != nil {
			return err
		}
		o.publish(ctx, next)
		o.logger.Info("claim parked for review", zap.String("claim_id", evt.ClaimID), zap.Float64("score", score))
		return nil
	}

	return o.routeClaim(ctx, evt.ClaimID)
}

// routeClaim triages a policy-validated claim into a work queue
func (o *Orchestrator) routeClaim(ctx context.Context, claimID string) error {
	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		return err
	}
	if claim.Status != model.StatusPolicyValidated || claim.ReviewPending {
		return nil
	}

	assessment := o.latestAssessment(claimID)
	if assessment == nil {
		assessment = o.fraud.RuleFallback(claim.Summary, len(claim.Documents))
	}
	deps := o.lastDecisionID(claimID, model.DecisionFraudAssessment)

	auditCtx := o.tracker.Begin().
		AddInput("summary", claim.Summary).
		AddInput("fraud_score", assessment.Score)

	var routing *model.RoutingDecision
	err = o.retry.do(ctx, agents.RouterName, func(ctx context.Context, attempt int) error {
		r, inv, err := o.router.Route(ctx, claim.Summary, assessment, attempt)
		auditCtx.SetPrompt(inv.Prompt).SetRawResponse(inv.RawResponse)
		if err != nil {
			auditCtx.AddParseAttempt(fmt.Sprintf("attempt %d: %v", attempt, err))
			return err
		}
		routing = r
		return nil
	})
	if err != nil {
		o.recordFailure(auditCtx, claimID, agents.RouterName, model.DecisionRouting, deps, err)
		return fmt.Errorf("route claim %s: %w", claimID, err)
	}

	if _, err := o.tracker.Record(auditCtx, audit.Entry{
		ClaimID:      claimID,
		Agent:        agents.RouterName,
		Kind:         model.DecisionRouting,
		Value:        routing,
		Reasoning:    routing.Reason,
		Dependencies: deps,
		Success:      true,
	}); err != nil {
		return err
	}

	next, err := o.applyTransition(claimID, func(c *model.Claim) (model.DomainEvent, error) {
		return c.Triage(*routing)
	})
	if err != nil {
		return err
	}
	o.publish(ctx, next)

	if _, err := o.tracker.Record(nil, audit.Entry{
		ClaimID:      claimID,
		Agent:        "workflow",
		Kind:         model.DecisionWorkflowStep,
		Value:        string(model.StatusTriaged),
		Reasoning:    fmt.Sprintf("routed to %s queue at %s priority", routing.Queue, routing.Priority),
		Dependencies: o.lastDecisionID(claimID, model.DecisionRouting),
		Success:      true,
	}); err != nil {
		return err
	}

	o.logger.Info("claim routed",
		zap.String("claim_id", claimID),
		zap.String("queue", routing.Queue),
		zap.String("priority", routing.Priority))
	return nil
}

// onDocumentAdded runs an authenticity check over the new document's
// metadata and marks it verified or flagged
func (o *Orchestrator) onDocumentAdded(ctx context.Context, evt model.DomainEvent) error {
	claim, err := o.claims.FindByID(evt.ClaimID)
	if err != nil {
		return err
	}

	docID, _ := evt.Payload["document_id"].(string)
	var doc model.Document
	found := false
	for _, d := range claim.Documents {
		if d.ID == docID {
			doc = d
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("claim %s has no document %s", evt.ClaimID, docID)
	}

	auditCtx := o.tracker.Begin().
		AddInput("document_id", docID).
		AddInput("filename", doc.Filename)

	var check *agents.DocumentCheck
	err = o.retry.do(ctx, agents.DocumentCheckerName, func(ctx context.Context, attempt int) error {
		c, inv, err := o.docCheck.Check(ctx, claim, doc, attempt)
		auditCtx.SetPrompt(inv.Prompt).SetRawResponse(inv.RawResponse)
		if err != nil {
			auditCtx.AddParseAttempt(fmt.Sprintf("attempt %d: %v", attempt, err))
			return err
		}
		check = c
		return nil
	})
	if err != nil {
		o.recordFailure(auditCtx, evt.ClaimID, agents.DocumentCheckerName, model.DecisionDocumentCheck, nil, err)
		return fmt.Errorf("check document %s: %w", docID, err)
	}

	if _, err := o.tracker.Record(auditCtx, audit.Entry{
		ClaimID:    evt.ClaimID,
		Agent:      agents.DocumentCheckerName,
		Kind:       model.DecisionDocumentCheck,
		Value:      check,
		Reasoning:  fmt.Sprintf("authentic=%v issues=%v", check.Authentic, check.Issues),
		Confidence: check.Confidence,
		Success:    true,
	}); err != nil {
		return err
	}

	validation := model.DocumentVerified
	if !check.Authentic {
		validation = model.DocumentFlagged
	}
	next, err := o.applyTransition(evt.ClaimID, func(c *model.Claim) (model.DomainEvent, error) {
		return c.MarkDocument(docID, validation)
	})
	if err != nil {
		return err
	}
	o.publish(ctx, next)
	return nil
}

// applyTransition re-reads the claim under its lock, applies one mutation
// and saves, so agent latency never holds the lock
func (o *Orchestrator) applyTransition(claimID string, fn func(*model.Claim) (model.DomainEvent, error)) (model.DomainEvent, error) {
	unlock := o.locks.lock(claimID)
	defer unlock()

	claim, err := o.claims.FindByID(claimID)
	if err != nil {
		return model.DomainEvent{}, err
	}
	evt, err := fn(claim)
	if err != nil {
		return model.DomainEvent{}, err
	}
	if err := o.claims.Save(claim); err != nil {
		return model.DomainEvent{}, err
	}
	return evt, nil
}

// latestAssessment fetches the most recent fraud assessment recorded for a
// claim, if any
func (o *Orchestrator) latestAssessment(claimID string) *agents.FraudAssessment {
	records := o.tracker.ByClaim(claimID, model.DecisionFraudAssessment)
	for i := len(records) - 1; i >= 0; i-- {
		if a, ok := records[i].Value.(*agents.FraudAssessment); ok {
			return a
		}
	}
	return nil
}
