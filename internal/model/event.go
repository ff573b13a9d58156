package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies domain events
type EventKind string

const (
	EventClaimSubmitted   EventKind = "claim_submitted"
	EventFactsExtracted   EventKind = "facts_extracted"
	EventPolicyValidated  EventKind = "policy_validated"
	EventClaimRejected    EventKind = "claim_rejected"
	EventFraudScored      EventKind = "fraud_scored"
	EventClaimRouted      EventKind = "claim_routed"
	EventDocumentAdded    EventKind = "document_added"
	EventDocumentVerified EventKind = "document_verified"
	EventDocumentFlagged  EventKind = "document_flagged"
	EventReviewRequested  EventKind = "review_requested"
	EventReviewCompleted  EventKind = "review_completed"
	EventClaimProcessing  EventKind = "claim_processing"
	EventClaimCompleted   EventKind = "claim_completed"
)

// DomainEvent is an immutable fact about something that happened to a claim.
// Events are never mutated or deleted after publication.
type DomainEvent struct {
	ID         string         `json:"id"`
	Kind       EventKind      `json:"kind"`
	ClaimID    string         `json:"claim_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewDomainEvent creates an event with a fresh ID and timestamp
func NewDomainEvent(kind EventKind, claimID string, payload map[string]any) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		ClaimID:    claimID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
