package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covassure/claimflow/internal/model"
)

// MemoryClaimStore is a thread-safe in-memory claim store. Claims are deep
// copied on the way in and out so callers can only mutate through Save.
type MemoryClaimStore struct {
	mu     sync.RWMutex
	claims map[string]*model.Claim
}

// NewMemoryClaimStore creates an empty store
func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		claims: make(map[string]*model.Claim),
	}
}

// Save inserts or replaces the claim
func (s *MemoryClaimStore) Save(claim *model.Claim) error {
	if claim == nil || claim.ID == "" {
		return fmt.Errorf("save claim: missing ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claim.ID] = claim.Clone()
	return nil
}

// FindByID returns a copy of the claim or ErrClaimNotFound
func (s *MemoryClaimStore) FindByID(id string) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claim, ok := s.claims[id]
	if !ok {
		return nil, fmt.Errorf("find claim %s: %w", id, ErrClaimNotFound)
	}
	return claim.Clone(), nil
}

// FindAll returns copies of all claims, oldest first
func (s *MemoryClaimStore) FindAll() ([]*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		out = append(out, claim.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MemoryDocumentStore keeps document bytes in memory; the returned reference
// carries an opaque location the core never interprets
type MemoryDocumentStore struct {
	mu      sync.Mutex
	content map[string][]byte
}

// NewMemoryDocumentStore creates an empty document store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		content: make(map[string][]byte),
	}
}

// Store persists the content and returns the evidence reference
func (s *MemoryDocumentStore) Store(ctx context.Context, claimID string, content []byte, filename string, docType model.DocumentType) (model.Document, error) {
	if len(content) == 0 {
		return model.Document{}, fmt.Errorf("store document: empty content")
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.content[id] = append([]byte(nil), content...)
	s.mu.Unlock()

	return model.Document{
		ID:         id,
		Type:       docType,
		Filename:   filename,
		Location:   "mem://" + claimID + "/" + id,
		SizeBytes:  int64(len(content)),
		Validation: model.DocumentPending,
		AddedAt:    time.Now().UTC(),
	}, nil
}

// Content returns the stored bytes for a document ID
func (s *MemoryDocumentStore) Content(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.content[id]
	return data, ok
}
