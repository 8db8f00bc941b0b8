// Package watcher polls a project tree and triggers reconciliation when
// any source file's metadata changes. Polling keeps the watcher portable;
// the reconciler's own fingerprinting decides what actually changed.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/DeusData/codegraph/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// ReconcileFunc is the callback that brings the stored graph up to date.
type ReconcileFunc func(ctx context.Context) error

// Watcher polls one project root for file changes.
type Watcher struct {
	root        string
	groupDirs   []string
	ignoreDirs  []string
	reconcileFn ReconcileFunc

	snapshot map[string]fileSnapshot
	interval time.Duration
}

// New creates a Watcher over a project root. groupDirs and ignoreDirs are
// passed through to discovery.
func New(root string, groupDirs, ignoreDirs []string, fn ReconcileFunc) *Watcher {
	return &Watcher{
		root:        root,
		groupDirs:   groupDirs,
		ignoreDirs:  ignoreDirs,
		reconcileFn: fn,
		interval:    baseInterval,
	}
}

// Run blocks until ctx is cancelled, polling at an adaptive interval. The
// first poll only captures a baseline.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.poll(ctx)
			timer.Reset(w.interval)
		}
	}
}

// Poll runs one poll cycle. Exposed so callers and tests can drive the
// watcher without its timer loop.
func (w *Watcher) Poll(ctx context.Context) {
	w.poll(ctx)
}

func (w *Watcher) poll(ctx context.Context) {
	if _, err := os.Stat(w.root); err != nil {
		slog.Warn("watcher.root_gone", "path", w.root)
		w.interval = maxInterval
		return
	}

	snap, err := w.captureSnapshot(ctx)
	if err != nil {
		slog.Warn("watcher.snapshot", "err", err)
		return
	}
	w.interval = pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "files", len(snap))
		w.snapshot = snap
		return
	}
	if snapshotsEqual(w.snapshot, snap) {
		return
	}

	slog.Info("watcher.changed", "files", len(snap))
	if err := w.reconcileFn(ctx); err != nil {
		slog.Warn("watcher.reconcile", "err", err)
		// Keep the old snapshot so the next cycle retries.
		return
	}
	w.snapshot = snap
}

// captureSnapshot records mtime+size for every discovered source file,
// keyed by group-qualified relative path.
func (w *Watcher) captureSnapshot(ctx context.Context) (map[string]fileSnapshot, error) {
	out, err := discover.Run(ctx, w.root, w.groupDirs, &discover.Options{ExtraIgnoreDirs: w.ignoreDirs})
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot)
	for _, grp := range out.Groups {
		for _, f := range grp.Files {
			info, statErr := os.Stat(filepath.Join(grp.RootPath, f))
			if statErr != nil {
				continue
			}
			snap[grp.Name+"/"+f] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		}
	}
	return snap, nil
}

func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, as := range a {
		bs, ok := b[path]
		if !ok {
			return false
		}
		if !as.modTime.Equal(bs.modTime) || as.size != bs.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	ms := 1000 + (fileCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
