package agents

import "context"

// SimilarPattern is one fraud-pattern match from the similarity index
type SimilarPattern struct {
	PatternID string         `json:"pattern_id"`
	Distance  float64        `json:"distance"` // smaller is closer
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SimilarityIndex is the optional vector-lookup collaborator feeding known
// fraud patterns into scoring. Implementations live outside the core.
type SimilarityIndex interface {
	FindSimilar(ctx context.Context, text string, n int) ([]SimilarPattern, error)
}
