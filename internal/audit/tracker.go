// Package audit is the append-only store of decision provenance. Every
// atomic decision made during claim processing lands here with its full
// evidentiary trail, supporting later explanation and failure analysis
// without re-running the workflow.
package audit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covassure/claimflow/internal/model"
)

// Tracker accrues, stores and retrieves decision records. Append-only:
// once a record is appended it is never modified or removed. Safe for
// concurrent use without per-key locking.
type Tracker struct {
	mu      sync.RWMutex
	records []model.DecisionRecord
	byID    map[string]int
	lastTS  time.Time
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		byID: make(map[string]int),
	}
}

// Begin opens a fresh accumulation scope for one in-flight decision
func (t *Tracker) Begin() *Context {
	return &Context{}
}

// Entry is the outcome side of a decision, joined with the accumulated
// Context at Record time
type Entry struct {
	ClaimID      string
	Agent        string
	Kind         model.DecisionKind
	Value        any
	Reasoning    string
	Confidence   *float64 // optional, 0.0–1.0
	Dependencies []string // decision IDs this one was built on
	Success      bool
	ErrorMessage string
}

// Record finalizes the context into an immutable record, appends it to the
// store and returns it
func (t *Tracker) Record(ctx *Context, e Entry) (model.DecisionRecord, error) {
	if e.ClaimID == "" {
		return model.DecisionRecord{}, fmt.Errorf("record decision: claim ID is required")
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return model.DecisionRecord{}, fmt.Errorf("record decision: confidence %v outside [0,1]", *e.Confidence)
	}

	var snap model.DecisionContext
	if ctx != nil {
		snap = ctx.snapshot()
	}

	var conf *float64
	if e.Confidence != nil {
		c := *e.Confidence
		conf = &c
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	record := model.DecisionRecord{
		ID:           uuid.NewString(),
		ClaimID:      e.ClaimID,
		AgentName:    e.Agent,
		Kind:         e.Kind,
		Value:        cloneValue(e.Value),
		Reasoning:    e.Reasoning,
		Confidence:   conf,
		Context:      snap,
		Dependencies: append([]string(nil), e.Dependencies...),
		Success:      e.Success,
		ErrorMessage: e.ErrorMessage,
		RecordedAt:   t.nextTimestamp(),
	}

	t.byID[record.ID] = len(t.records)
	t.records = append(t.records, record)

	return cloneRecord(record), nil
}

// ByClaim returns all records for a claim in timestamp order, optionally
// filtered to the given kinds
func (t *Tracker) ByClaim(claimID string, kinds ...model.DecisionKind) []model.DecisionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []model.DecisionRecord
	for _, r := range t.records {
		if r.ClaimID != claimID {
			continue
		}
		if len(kinds) > 0 && !kindMatches(r.Kind, kinds) {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out
}

// ByID returns the record with the given decision ID, if present
func (t *Tracker) ByID(decisionID string) (model.DecisionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx, ok := t.byID[decisionID]
	if !ok {
		return model.DecisionRecord{}, false
	}
	return cloneRecord(t.records[idx]), true
}

// Failed returns all failed records, scoped to one claim when claimID is
// non-empty
func (t *Tracker) Failed(claimID string) []model.DecisionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []model.DecisionRecord
	for _, r := range t.records {
		if r.Success {
			continue
		}
		if claimID != "" && r.ClaimID != claimID {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out
}

// Chain returns all records transitively related to the given decision — its
// dependencies, its dependents, and theirs — sorted by timestamp. Used for
// answering "why did X happen" without re-running the workflow.
func (t *Tracker) Chain(decisionID string) []model.DecisionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.byID[decisionID]; !ok {
		return nil
	}

	// Bidirectional walk over dependency edges until fixpoint
	seen := map[string]bool{decisionID: true}
	frontier := []string{decisionID}

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			idx, ok := t.byID[id]
			if !ok {
				continue
			}
			for _, dep := range t.records[idx].Dependencies {
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
			for _, r := range t.records {
				if seen[r.ID] {
					continue
				}
				for _, dep := range r.Dependencies {
					if dep == id {
						seen[r.ID] = true
						next = append(next, r.ID)
						break
					}
				}
			}
		}
		frontier = next
	}

	var out []model.DecisionRecord
	for _, r := range t.records {
		if seen[r.ID] {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out
}

// Len returns the number of stored records
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// nextTimestamp returns a strictly increasing timestamp so records appended
// in quick succession still sort in causal order. Caller holds t.mu.
func (t *Tracker) nextTimestamp() time.Time {
	now := time.Now().UTC()
	if !now.After(t.lastTS) {
		now = t.lastTS.Add(time.Nanosecond)
	}
	t.lastTS = now
	return now
}

func kindMatches(kind model.DecisionKind, kinds []model.DecisionKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// cloneValue deep-copies pointer, map and slice payloads through a JSON
// round-trip that keeps the concrete type, so callers holding or receiving a
// payload reference can never reach the stored record. Scalar payloads pass
// through unchanged.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return v
		}
	default:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out := reflect.New(rv.Type())
	if err := json.Unmarshal(b, out.Interface()); err != nil {
		return v
	}
	return out.Elem().Interface()
}

// cloneRecord copies the fields callers could otherwise alias into the store
func cloneRecord(r model.DecisionRecord) model.DecisionRecord {
	cp := r
	cp.Value = cloneValue(r.Value)
	cp.Dependencies = append([]string(nil), r.Dependencies...)
	if r.Context.Inputs != nil {
		cp.Context.Inputs = make(map[string]any, len(r.Context.Inputs))
		for k, v := range r.Context.Inputs {
			cp.Context.Inputs[k] = cloneValue(v)
		}
	}
	cp.Context.ParseAttempts = append([]string(nil), r.Context.ParseAttempts...)
	cp.Context.Evidence = append([]string(nil), r.Context.Evidence...)
	if r.Confidence != nil {
		c := *r.Confidence
		cp.Confidence = &c
	}
	return cp
}
