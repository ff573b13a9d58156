package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents a claim's position in the processing lifecycle
type Status string

const (
	StatusDraft           Status = "draft"
	StatusFactsExtracted  Status = "facts_extracted"
	StatusPolicyValidated Status = "policy_validated"
	StatusTriaged         Status = "triaged"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Claim is the aggregate root for one submitted insurance claim.
// Transitions are strictly forward per the table below and the workflow
// orchestrator is the sole mutator:
//
//	draft → facts_extracted → policy_validated → triaged → processing → completed
//	rejected is reachable from facts_extracted and policy_validated only
type Claim struct {
	ID            string           `json:"id"`
	Status        Status           `json:"status"`
	Summary       *ClaimSummary    `json:"summary,omitempty"`
	Documents     []Document       `json:"documents,omitempty"`
	Routing       *RoutingDecision `json:"routing,omitempty"`
	ReviewPending bool             `json:"review_pending"`
	RawInput      string           `json:"raw_input"`
	Source        string           `json:"source"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewClaim creates a claim in draft status
func NewClaim(rawInput, source string) *Claim {
	now := time.Now().UTC()
	return &Claim{
		ID:        uuid.NewString(),
		Status:    StatusDraft,
		RawInput:  rawInput,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RoutingDecision is the triage outcome stored on the claim
type RoutingDecision struct {
	Queue    string `json:"queue"`    // fast-track, standard, investigation, specialist
	Priority string `json:"priority"` // low, medium, high, urgent
	Reason   string `json:"reason,omitempty"`
}

// ExtractFacts stores the validated summary and advances draft → facts_extracted.
// The summary is populated exactly once, here. The returned event is a side
// effect not yet published; publication is the orchestrator's job.
func (c *Claim) ExtractFacts(summary *ClaimSummary) (DomainEvent, error) {
	if c.Status != StatusDraft {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "ExtractFacts"}
	}
	c.Summary = summary
	c.advance(StatusFactsExtracted)
	return NewDomainEvent(EventFactsExtracted, c.ID, map[string]any{
		"claim_type": summary.ClaimType,
		"amount":     summary.Amount,
		"currency":   summary.Currency,
	}), nil
}

// ValidatePolicy advances facts_extracted → policy_validated when coverage
// holds, or → rejected when it does not
func (c *Claim) ValidatePolicy(valid bool, reason string) (DomainEvent, error) {
	if c.Status != StatusFactsExtracted {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "ValidatePolicy"}
	}
	if !valid {
		c.advance(StatusRejected)
		return NewDomainEvent(EventClaimRejected, c.ID, map[string]any{"reason": reason}), nil
	}
	c.advance(StatusPolicyValidated)
	return NewDomainEvent(EventPolicyValidated, c.ID, map[string]any{"reason": reason}), nil
}

// Triage stores the routing outcome and advances policy_validated → triaged
func (c *Claim) Triage(routing RoutingDecision) (DomainEvent, error) {
	if c.Status != StatusPolicyValidated {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "Triage"}
	}
	c.Routing = &routing
	c.advance(StatusTriaged)
	return NewDomainEvent(EventClaimRouted, c.ID, map[string]any{
		"queue":    routing.Queue,
		"priority": routing.Priority,
	}), nil
}

// Reject marks the claim rejected. Legal only once facts or policy coverage
// are known, i.e. from facts_extracted or policy_validated.
func (c *Claim) Reject(reason string) (DomainEvent, error) {
	if c.Status != StatusFactsExtracted && c.Status != StatusPolicyValidated {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "Reject"}
	}
	c.advance(StatusRejected)
	return NewDomainEvent(EventClaimRejected, c.ID, map[string]any{"reason": reason}), nil
}

// RequestReview parks the claim for human review. The claim stays in
// policy_validated; triage is deferred until the review completes.
func (c *Claim) RequestReview(reason string) (DomainEvent, error) {
	if c.Status != StatusPolicyValidated || c.ReviewPending {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "RequestReview"}
	}
	c.ReviewPending = true
	c.UpdatedAt = time.Now().UTC()
	return NewDomainEvent(EventReviewRequested, c.ID, map[string]any{"reason": reason}), nil
}

// CompleteReview clears a pending review so the workflow can resume
func (c *Claim) CompleteReview(approved bool, notes string) (DomainEvent, error) {
	if !c.ReviewPending {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "CompleteReview"}
	}
	c.ReviewPending = false
	c.UpdatedAt = time.Now().UTC()
	return NewDomainEvent(EventReviewCompleted, c.ID, map[string]any{
		"approved": approved,
		"notes":    notes,
	}), nil
}

// BeginProcessing advances triaged → processing
func (c *Claim) BeginProcessing() (DomainEvent, error) {
	if c.Status != StatusTriaged {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "BeginProcessing"}
	}
	c.advance(StatusProcessing)
	return NewDomainEvent(EventClaimProcessing, c.ID, nil), nil
}

// Complete advances processing → completed
func (c *Claim) Complete() (DomainEvent, error) {
	if c.Status != StatusProcessing {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "Complete"}
	}
	c.advance(StatusCompleted)
	return NewDomainEvent(EventClaimCompleted, c.ID, nil), nil
}

// AddDocument appends evidence to the claim. Legal in any non-terminal state
// and never changes status; the documents collection is append-only.
func (c *Claim) AddDocument(doc Document) (DomainEvent, error) {
	if c.Status.IsTerminal() {
		return DomainEvent{}, &InvalidStateTransitionError{ClaimID: c.ID, From: c.Status, Op: "AddDocument"}
	}
	c.Documents = append(c.Documents, doc)
	c.UpdatedAt = time.Now().UTC()
	return NewDomainEvent(EventDocumentAdded, c.ID, map[string]any{
		"document_id": doc.ID,
		"type":        string(doc.Type),
		"filename":    doc.Filename,
	}), nil
}

// MarkDocument records the validation outcome for an attached document.
// Status is untouched; only the document entry changes.
func (c *Claim) MarkDocument(docID string, v DocumentValidation) (DomainEvent, error) {
	for i := range c.Documents {
		if c.Documents[i].ID != docID {
			continue
		}
		c.Documents[i].Validation = v
		c.UpdatedAt = time.Now().UTC()
		kind := EventDocumentVerified
		if v == DocumentFlagged {
			kind = EventDocumentFlagged
		}
		return NewDomainEvent(kind, c.ID, map[string]any{
			"document_id": docID,
			"validation":  string(v),
		}), nil
	}
	return DomainEvent{}, fmt.Errorf("claim %s has no document %s", c.ID, docID)
}

// Clone returns a deep copy so stores hand out claims without aliasing the
// aggregate's internal state
func (c *Claim) Clone() *Claim {
	cp := *c
	if c.Summary != nil {
		s := *c.Summary
		cp.Summary = &s
	}
	if c.Routing != nil {
		r := *c.Routing
		cp.Routing = &r
	}
	if c.Documents != nil {
		cp.Documents = append([]Document(nil), c.Documents...)
	}
	return &cp
}

func (c *Claim) advance(next Status) {
	c.Status = next
	c.UpdatedAt = time.Now().UTC()
}
