package model

import (
	"errors"
	"testing"
	"time"
)

func validSummary(t *testing.T) *ClaimSummary {
	t.Helper()
	summary, err := NewClaimSummary("auto", time.Now().Add(-48*time.Hour), time.Now(), 3500, "USD", "Springfield", "Car accident", "J. Doe", "POL-001")
	if err != nil {
		t.Fatalf("expected valid summary, got %v", err)
	}
	return summary
}

func validatedClaim(t *testing.T) *Claim {
	t.Helper()
	claim := NewClaim("raw", "test")
	if _, err := claim.ExtractFacts(validSummary(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := claim.ValidatePolicy(true, "covered"); err != nil {
		t.Fatal(err)
	}
	return claim
}

func TestNewClaim(t *testing.T) {
	claim := NewClaim("raw text", "email")

	if claim.ID == "" {
		t.Error("expected claim ID to be assigned")
	}
	if claim.Status != StatusDraft {
		t.Errorf("expected draft status, got %s", claim.Status)
	}
	if claim.RawInput != "raw text" || claim.Source != "email" {
		t.Error("expected raw input and source to be stored")
	}
}

func TestClaim_HappyPath(t *testing.T) {
	claim := NewClaim("raw", "test")

	ev, err := claim.ExtractFacts(validSummary(t))
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	if ev.Kind != EventFactsExtracted || ev.ClaimID != claim.ID {
		t.Errorf("unexpected event %+v", ev)
	}
	if claim.Status != StatusFactsExtracted {
		t.Errorf("expected facts_extracted, got %s", claim.Status)
	}
	if claim.Summary == nil {
		t.Fatal("expected summary to be stored")
	}

	ev, err = claim.ValidatePolicy(true, "covered")
	if err != nil {
		t.Fatalf("ValidatePolicy: %v", err)
	}
	if ev.Kind != EventPolicyValidated || claim.Status != StatusPolicyValidated {
		t.Errorf("expected policy_validated, got %s / event %s", claim.Status, ev.Kind)
	}

	ev, err = claim.Triage(RoutingDecision{Queue: "standard", Priority: "medium"})
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if ev.Kind != EventClaimRouted || claim.Status != StatusTriaged {
		t.Errorf("expected triaged, got %s", claim.Status)
	}
	if claim.Routing == nil || claim.Routing.Queue != "standard" {
		t.Error("expected routing decision to be stored")
	}

	if _, err := claim.BeginProcessing(); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if _, err := claim.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if claim.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", claim.Status)
	}
}

func TestClaim_IllegalTransitionsLeaveStatusUnchanged(t *testing.T) {
	tests := []struct {
		name string
		op   func(c *Claim) error
		from func(t *testing.T) *Claim
	}{
		{
			name: "validate policy before facts",
			op: func(c *Claim) error {
				_, err := c.ValidatePolicy(true, "")
				return err
			},
			from: func(t *testing.T) *Claim { return NewClaim("raw", "test") },
		},
		{
			name: "triage before policy",
			op: func(c *Claim) error {
				_, err := c.Triage(RoutingDecision{Queue: "standard"})
				return err
			},
			from: func(t *testing.T) *Claim { return NewClaim("raw", "test") },
		},
		{
			name: "extract facts twice",
			op: func(c *Claim) error {
				_, err := c.ExtractFacts(validSummary(t))
				return err
			},
			from: func(t *testing.T) *Claim {
				c := NewClaim("raw", "test")
				if _, err := c.ExtractFacts(validSummary(t)); err != nil {
					t.Fatal(err)
				}
				return c
			},
		},
		{
			name: "reject from draft",
			op: func(c *Claim) error {
				_, err := c.Reject("no")
				return err
			},
			from: func(t *testing.T) *Claim { return NewClaim("raw", "test") },
		},
		{
			name: "complete before processing",
			op: func(c *Claim) error {
				_, err := c.Complete()
				return err
			},
			from: func(t *testing.T) *Claim { return NewClaim("raw", "test") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := tt.from(t)
			before := claim.Status

			err := tt.op(claim)

			var ist *InvalidStateTransitionError
			if !errors.As(err, &ist) {
				t.Fatalf("expected InvalidStateTransitionError, got %v", err)
			}
			if claim.Status != before {
				t.Errorf("status changed from %s to %s on illegal transition", before, claim.Status)
			}
		})
	}
}

func TestClaim_RejectOnInvalidPolicy(t *testing.T) {
	claim := NewClaim("raw", "test")
	if _, err := claim.ExtractFacts(validSummary(t)); err != nil {
		t.Fatal(err)
	}

	ev, err := claim.ValidatePolicy(false, "policy lapsed")
	if err != nil {
		t.Fatalf("ValidatePolicy: %v", err)
	}
	if ev.Kind != EventClaimRejected {
		t.Errorf("expected claim_rejected event, got %s", ev.Kind)
	}
	if claim.Status != StatusRejected {
		t.Errorf("expected rejected, got %s", claim.Status)
	}
	if reason, ok := ev.Payload["reason"].(string); !ok || reason != "policy lapsed" {
		t.Errorf("expected rejection reason in payload, got %v", ev.Payload)
	}
}

func TestClaim_AddDocument(t *testing.T) {
	claim := NewClaim("raw", "test")

	doc := Document{ID: "doc-1", Type: DocumentTypePhoto, Filename: "damage.jpg", Validation: DocumentPending, AddedAt: time.Now()}
	ev, err := claim.AddDocument(doc)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if ev.Kind != EventDocumentAdded {
		t.Errorf("expected document_added event, got %s", ev.Kind)
	}
	if claim.Status != StatusDraft {
		t.Errorf("AddDocument must not change status, got %s", claim.Status)
	}
	if len(claim.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(claim.Documents))
	}

	// Legal mid-flow too
	if _, err := claim.ExtractFacts(validSummary(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := claim.AddDocument(Document{ID: "doc-2", Type: DocumentTypeInvoice}); err != nil {
		t.Fatalf("AddDocument in facts_extracted: %v", err)
	}
	if len(claim.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(claim.Documents))
	}

	// Illegal once terminal
	if _, err := claim.ValidatePolicy(false, "nope"); err != nil {
		t.Fatal(err)
	}
	_, err = claim.AddDocument(Document{ID: "doc-3"})
	var ist *InvalidStateTransitionError
	if !errors.As(err, &ist) {
		t.Fatalf("expected InvalidStateTransitionError on terminal claim, got %v", err)
	}
}

func TestClaim_Clone(t *testing.T) {
	claim := NewClaim("raw", "test")
	if _, err := claim.ExtractFacts(validSummary(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := claim.AddDocument(Document{ID: "doc-1"}); err != nil {
		t.Fatal(err)
	}

	cp := claim.Clone()
	cp.Summary.Amount = 999999
	cp.Documents[0].ID = "mutated"
	cp.Status = StatusCompleted

	if claim.Summary.Amount == 999999 {
		t.Error("clone shares summary with original")
	}
	if claim.Documents[0].ID == "mutated" {
		t.Error("clone shares documents with original")
	}
	if claim.Status == StatusCompleted {
		t.Error("clone shares status with original")
	}
}

func TestNewClaimSummary_Validation(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name      string
		claimType string
		incident  time.Time
		reported  time.Time
		amount    float64
		currency  string
		wantField string
	}{
		{"empty claim type", "", past, now, 100, "USD", "claim_type"},
		{"zero incident date", "auto", time.Time{}, now, 100, "USD", "incident_date"},
		{"future incident date", "auto", now.Add(48 * time.Hour), now, 100, "USD", "incident_date"},
		{"reported before incident", "auto", past, past.Add(-time.Hour), 100, "USD", "reported_date"},
		{"negative amount", "auto", past, now, -5, "USD", "amount"},
		{"empty currency", "auto", past, now, 100, "", "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClaimSummary(tt.claimType, tt.incident, tt.reported, tt.amount, tt.currency, "", "", "", "")

			var sv *SchemaViolationError
			if !errors.As(err, &sv) {
				t.Fatalf("expected SchemaViolationError, got %v", err)
			}
			if sv.Field != tt.wantField {
				t.Errorf("expected violation on %q, got %q", tt.wantField, sv.Field)
			}
		})
	}
}

func TestNewClaimSummary_Normalizes(t *testing.T) {
	summary, err := NewClaimSummary(" Auto ", time.Now().Add(-time.Hour), time.Time{}, 100, "usd", "", "", "", "")
	if err != nil {
		t.Fatalf("expected valid summary, got %v", err)
	}
	if summary.ClaimType != "auto" {
		t.Errorf("expected normalized claim type, got %q", summary.ClaimType)
	}
	if summary.Currency != "USD" {
		t.Errorf("expected upper-case currency, got %q", summary.Currency)
	}
	if summary.ReportedDate.IsZero() {
		t.Error("expected reported date to default to now")
	}
}

func TestClaimReviewParkAndResume(t *testing.T) {
	claim := validatedClaim(t)

	if _, err := claim.RequestReview("high fraud score"); err != nil {
		t.Fatalf("RequestReview: %v", err)
	}
	if !claim.ReviewPending || claim.Status != StatusPolicyValidated {
		t.Fatalf("expected parked at policy_validated, got %v pending=%v", claim.Status, claim.ReviewPending)
	}

	// Parking twice is illegal
	if _, err := claim.RequestReview("again"); err == nil {
		t.Fatal("expected error on double park")
	}

	evt, err := claim.CompleteReview(true, "checked out")
	if err != nil {
		t.Fatalf("CompleteReview: %v", err)
	}
	if evt.Kind != EventReviewCompleted {
		t.Errorf("expected review_completed event, got %v", evt.Kind)
	}
	if claim.ReviewPending {
		t.Error("expected pending flag cleared")
	}

	if _, err := claim.CompleteReview(true, ""); err == nil {
		t.Fatal("expected error completing a review that is not pending")
	}
}

func TestClaimRequestReviewRequiresPolicyValidated(t *testing.T) {
	claim := NewClaim("raw", "test")
	if _, err := claim.RequestReview("too early"); err == nil {
		t.Fatal("expected error requesting review on a draft claim")
	}
}

func TestClaimMarkDocument(t *testing.T) {
	claim := NewClaim("raw", "test")
	doc := Document{ID: "doc-1", Type: DocumentTypePhoto, Filename: "f.jpg", Validation: DocumentPending}
	if _, err := claim.AddDocument(doc); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	evt, err := claim.MarkDocument("doc-1", DocumentVerified)
	if err != nil {
		t.Fatalf("MarkDocument: %v", err)
	}
	if evt.Kind != EventDocumentVerified {
		t.Errorf("expected document_verified, got %v", evt.Kind)
	}
	if claim.Documents[0].Validation != DocumentVerified {
		t.Errorf("expected verified, got %v", claim.Documents[0].Validation)
	}

	evt, err = claim.MarkDocument("doc-1", DocumentFlagged)
	if err != nil {
		t.Fatalf("MarkDocument: %v", err)
	}
	if evt.Kind != EventDocumentFlagged {
		t.Errorf("expected document_flagged, got %v", evt.Kind)
	}

	if _, err := claim.MarkDocument("missing", DocumentVerified); err == nil {
		t.Fatal("expected error for unknown document")
	}
}
