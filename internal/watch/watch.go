// Package watch ingests claim submissions dropped into a directory. Each
// eligible file becomes one claim submission once writes have settled.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/worker"
)

var eligibleExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
	".html": true,
	".eml":  true,
}

// Watcher submits files appearing in an intake directory as claims
type Watcher struct {
	dir            string
	settle         time.Duration
	deleteIngested bool
	submitter      worker.Submitter
	logger         *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher over cfg.Dir
func New(cfg model.WatchConfig, submitter worker.Submitter, logger *zap.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch: intake directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", cfg.Dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	settle := time.Duration(cfg.SettleMillis) * time.Millisecond
	if settle <= 0 {
		settle = 200 * time.Millisecond
	}
	return &Watcher{
		dir:            cfg.Dir,
		settle:         settle,
		deleteIngested: cfg.DeleteIngested,
		submitter:      submitter,
		logger:         logger,
		timers:         make(map[string]*time.Timer),
	}, nil
}

// Run watches the intake directory until the context is canceled. Files
// already present at startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	defer w.stopTimers()

	ready := make(chan string, 16)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if eligible(path) {
			w.scheduleSettle(ctx, path, ready)
		}
	}

	w.logger.Info("watching intake directory", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if eligible(ev.Name) {
				w.scheduleSettle(ctx, ev.Name, ready)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case path := <-ready:
			w.ingest(ctx, path)
		}
	}
}

// scheduleSettle defers ingestion until the file has been quiet for the
// settle window, so half-written files are not picked up. The fired timer
// gives up on cancellation instead of blocking on a receiver that is gone.
func (w *Watcher) scheduleSettle(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

// stopTimers cancels settle timers still pending when Run exits
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("read intake file", zap.String("path", path), zap.Error(err))
		return
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		w.logger.Debug("skipping empty intake file", zap.String("path", path))
		return
	}

	claim, err := w.submitter.SubmitClaim(ctx, string(content), "watch:"+filepath.Base(path))
	if err != nil {
		w.logger.Error("submit intake file", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("intake file submitted",
		zap.String("path", path),
		zap.String("claim_id", claim.ID),
		zap.String("status", string(claim.Status)))

	if w.deleteIngested {
		if err := os.Remove(path); err != nil {
			w.logger.Warn("remove ingested file", zap.String("path", path), zap.Error(err))
		}
	}
}

func eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return eligibleExtensions[strings.ToLower(filepath.Ext(base))]
}
