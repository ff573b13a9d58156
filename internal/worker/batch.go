package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/covassure/claimflow/internal/model"
)

// Submitter defines the interface for submitting one claim; implemented by
// the workflow orchestrator
type Submitter interface {
	SubmitClaim(ctx context.Context, rawInput, source string) (*model.Claim, error)
}

// SubmitJob carries one raw submission through the pool
type SubmitJob struct {
	Raw       string
	Source    string
	Submitter Submitter
}

// Execute runs the submission
func (j *SubmitJob) Execute(ctx context.Context) Result {
	claim, err := j.Submitter.SubmitClaim(ctx, j.Raw, j.Source)
	return &SubmitResult{Raw: j.Raw, Claim: claim, Error: err}
}

// SubmitResult is the outcome of one batch submission. Claim may be non-nil
// even when Error is set: partial progress already committed stays visible.
type SubmitResult struct {
	Raw   string
	Claim *model.Claim
	Error error
}

// GetError returns the error from the submission
func (r *SubmitResult) GetError() error {
	return r.Error
}

// BatchSubmitter processes many raw submissions concurrently. Each claim's
// workflow runs in its own worker; unrelated claims never wait on each other.
type BatchSubmitter struct {
	submitter   Submitter
	concurrency int
}

// NewBatchSubmitter creates a new batch submitter
func NewBatchSubmitter(submitter Submitter, concurrency int) *BatchSubmitter {
	return &BatchSubmitter{
		submitter:   submitter,
		concurrency: concurrency,
	}
}

// Process submits all raw inputs over the pool and returns the results
func (b *BatchSubmitter) Process(ctx context.Context, raws []string, source string) []*SubmitResult {
	if len(raws) == 0 {
		return []*SubmitResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, raw := range raws {
		pool.Submit(&SubmitJob{Raw: raw, Source: source, Submitter: b.submitter})
	}

	results := pool.Wait()
	out := make([]*SubmitResult, 0, len(results))
	for _, r := range results {
		if sr, ok := r.(*SubmitResult); ok {
			out = append(out, sr)
		}
	}
	return out
}

// ReadSubmissionsFile reads one raw submission per non-empty line; lines
// starting with '#' are comments
func ReadSubmissionsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open submissions file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var raws []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read submissions file: %w", err)
	}

	return raws, nil
}
