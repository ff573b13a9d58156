// Package store defines the persistence boundary of the core. The real
// relational layer lives outside; the core only depends on these interfaces
// and ships in-memory implementations for embedding and tests.
package store

import (
	"context"
	"errors"

	"github.com/covassure/claimflow/internal/model"
)

// ErrClaimNotFound is returned when a claim ID is unknown
var ErrClaimNotFound = errors.New("claim not found")

// ClaimStore persists claim aggregates
type ClaimStore interface {
	Save(claim *model.Claim) error
	FindByID(id string) (*model.Claim, error)
	FindAll() ([]*model.Claim, error)
}

// DocumentStore persists document content and returns the evidence reference
// to attach to the claim
type DocumentStore interface {
	Store(ctx context.Context, claimID string, content []byte, filename string, docType model.DocumentType) (model.Document, error)
}
