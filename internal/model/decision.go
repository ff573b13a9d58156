package model

import "time"

// DecisionKind classifies the atomic decisions made during processing
type DecisionKind string

const (
	DecisionFactExtraction   DecisionKind = "fact-extraction"
	DecisionPolicyValidation DecisionKind = "policy-validation"
	DecisionFraudAssessment  DecisionKind = "fraud-assessment"
	DecisionRouting          DecisionKind = "routing"
	DecisionDocumentCheck    DecisionKind = "document-check"
	DecisionWorkflowStep     DecisionKind = "workflow-step"
	DecisionHumanReview      DecisionKind = "human-review"
)

// DecisionContext captures everything a decision was built on: inputs, the
// raw prompt sent, the raw unparsed response, intermediate parse attempts and
// evidence snippets gathered along the way
type DecisionContext struct {
	Inputs        map[string]any `json:"inputs,omitempty"`
	Prompt        string         `json:"prompt,omitempty"`
	RawResponse   string         `json:"raw_response,omitempty"`
	ParseAttempts []string       `json:"parse_attempts,omitempty"`
	Evidence      []string       `json:"evidence,omitempty"`
}

// DecisionRecord is one immutable, evidenced record of an atomic decision.
// The audit store is append-only; records never change once captured.
type DecisionRecord struct {
	ID           string          `json:"id"`
	ClaimID      string          `json:"claim_id"`
	AgentName    string          `json:"agent_name"`
	Kind         DecisionKind    `json:"kind"`
	Value        any             `json:"value"` // scalar, map or list; schema-light by design of the audit store
	Reasoning    string          `json:"reasoning,omitempty"`
	Confidence   *float64        `json:"confidence,omitempty"` // 0.0–1.0 when present
	Context      DecisionContext `json:"context"`
	Dependencies []string        `json:"dependencies,omitempty"` // decision IDs this one was built on
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}
