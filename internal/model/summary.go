package model

import (
	"strings"
	"time"
)

// ClaimSummary is the structured record recovered from the raw submission.
// Instances are only built through NewClaimSummary so a partially valid
// summary can never exist.
type ClaimSummary struct {
	ClaimType    string    `json:"claim_type"`
	IncidentDate time.Time `json:"incident_date"`
	ReportedDate time.Time `json:"reported_date"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	ClaimantName string    `json:"claimant_name,omitempty"`
	PolicyRef    string    `json:"policy_ref,omitempty"`
}

// NewClaimSummary validates invariants on construction and returns a
// SchemaViolationError naming the offending field on failure
func NewClaimSummary(claimType string, incidentDate, reportedDate time.Time, amount float64, currency, location, description, claimantName, policyRef string) (*ClaimSummary, error) {
	if strings.TrimSpace(claimType) == "" {
		return nil, &SchemaViolationError{Field: "claim_type", Reason: "must not be empty"}
	}
	if incidentDate.IsZero() {
		return nil, &SchemaViolationError{Field: "incident_date", Reason: "must be set"}
	}
	if incidentDate.After(time.Now().UTC()) {
		return nil, &SchemaViolationError{Field: "incident_date", Reason: "must not be in the future"}
	}
	if !reportedDate.IsZero() && reportedDate.Before(incidentDate) {
		return nil, &SchemaViolationError{Field: "reported_date", Reason: "must not precede incident date"}
	}
	if amount < 0 {
		return nil, &SchemaViolationError{Field: "amount", Reason: "must be non-negative"}
	}
	if strings.TrimSpace(currency) == "" {
		return nil, &SchemaViolationError{Field: "currency", Reason: "must not be empty"}
	}
	if reportedDate.IsZero() {
		reportedDate = time.Now().UTC()
	}
	return &ClaimSummary{
		ClaimType:    strings.ToLower(strings.TrimSpace(claimType)),
		IncidentDate: incidentDate,
		ReportedDate: reportedDate,
		Amount:       amount,
		Currency:     strings.ToUpper(strings.TrimSpace(currency)),
		Location:     strings.TrimSpace(location),
		Description:  strings.TrimSpace(description),
		ClaimantName: strings.TrimSpace(claimantName),
		PolicyRef:    strings.TrimSpace(policyRef),
	}, nil
}

// DocumentType classifies attached evidence
type DocumentType string

const (
	DocumentTypePhoto    DocumentType = "photo"
	DocumentTypeInvoice  DocumentType = "invoice"
	DocumentTypeReport   DocumentType = "report"
	DocumentTypeIdentity DocumentType = "identity"
	DocumentTypeOther    DocumentType = "other"
)

// DocumentValidation is the authenticity-check status of a document
type DocumentValidation string

const (
	DocumentPending  DocumentValidation = "pending"
	DocumentVerified DocumentValidation = "verified"
	DocumentFlagged  DocumentValidation = "flagged"
)

// Document is an evidence reference attached to a claim
type Document struct {
	ID         string             `json:"id"`
	Type       DocumentType       `json:"type"`
	Filename   string             `json:"filename"`
	Location   string             `json:"location,omitempty"` // storage reference, opaque to the core
	SizeBytes  int64              `json:"size_bytes,omitempty"`
	Validation DocumentValidation `json:"validation"`
	AddedAt    time.Time          `json:"added_at"`
}
