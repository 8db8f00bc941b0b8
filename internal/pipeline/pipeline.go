// Package pipeline orchestrates indexing: discovery, parallel per-file
// parsing, the sequential merge/validate/resolve passes and the atomic
// store reconciliation. A full build and an incremental update are the
// same path; a full build is simply a reconciliation where every file is
// new.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codegraph/internal/astparse"
	"github.com/DeusData/codegraph/internal/discover"
	"github.com/DeusData/codegraph/internal/graph"
	"github.com/DeusData/codegraph/internal/store"
	"github.com/DeusData/codegraph/internal/visitor"
)

// Indexer drives reconciliations for one project against one store.
type Indexer struct {
	Store      *store.Store
	Root       string
	GroupDirs  []string
	Workers    int
	IgnoreDirs []string

	// commitFault, when set, runs inside the commit transaction after all
	// writes. Tests use it to prove a failed commit leaves no trace.
	commitFault func(tx *store.Store) error
}

// New creates an Indexer for a project root.
func New(s *store.Store, root string) *Indexer {
	return &Indexer{Store: s, Root: root}
}

// ReconciliationError reports a failed group reconciliation. The store
// was rolled back to its prior state.
type ReconciliationError struct {
	Group string
	Err   error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Group, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// Run discovers every group and reconciles each one. A failing group
// never blocks its siblings; the combined error reports all failures.
func (ix *Indexer) Run(ctx context.Context) error {
	slog.Info("pipeline.start", "root", ix.Root)
	out, err := discover.Run(ctx, ix.Root, ix.GroupDirs, &discover.Options{ExtraIgnoreDirs: ix.IgnoreDirs})
	if err != nil {
		return err
	}

	var errs []error
	for _, derr := range out.Errors {
		errs = append(errs, derr)
	}
	for _, grp := range out.Groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ix.ReconcileGroup(ctx, grp); err != nil {
			slog.Error("pipeline.group_failed", "group", grp.Name, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReconcileGroup brings the stored graph for one group up to date with
// its files on disk. The store transition is a single transaction: on any
// failure the previous state stays current.
func (ix *Indexer) ReconcileGroup(ctx context.Context, grp discover.Group) error {
	stored, err := ix.Store.GetFileHashes(grp.Name)
	if err != nil {
		return &ReconciliationError{Group: grp.Name, Err: err}
	}
	current, err := FingerprintFiles(ctx, grp.RootPath, grp.Files, ix.Workers)
	if err != nil {
		return &ReconciliationError{Group: grp.Name, Err: err}
	}

	changes := Classify(stored, current)
	slog.Info("incremental.classify", "group", grp.Name,
		"changed", len(changes.Changed), "new", len(changes.New),
		"deleted", len(changes.Deleted), "unchanged", len(changes.Unchanged))
	if changes.IsEmpty() {
		slog.Info("incremental.noop", "group", grp.Name)
		return nil
	}

	// Parse every current file: resolution needs the complete node
	// universe even when only a fragment of rows will be rewritten.
	t := time.Now()
	results, err := ix.parseGroup(ctx, grp)
	if err != nil {
		return &ReconciliationError{Group: grp.Name, Err: err}
	}
	slog.Info("pass.timing", "group", grp.Name, "pass", "parse", "files", len(results), "elapsed", time.Since(t))

	t = time.Now()
	validated, err := graph.Merge(results).Validate()
	if err != nil {
		return &ReconciliationError{Group: grp.Name, Err: err}
	}
	logical, err := validated.Resolve()
	if err != nil {
		return &ReconciliationError{Group: grp.Name, Err: err}
	}
	slog.Info("pass.timing", "group", grp.Name, "pass", "resolve",
		"nodes", len(logical.Nodes()), "relations", len(logical.Relations()), "elapsed", time.Since(t))

	if err := ix.commit(grp, changes, logical, current); err != nil {
		return &ReconciliationError{Group: grp.Name, Err: err}
	}

	nc, _ := ix.Store.CountLiveNodes(grp.Name)
	ec, _ := ix.Store.CountLiveEdges(grp.Name)
	slog.Info("pipeline.group_done", "group", grp.Name, "nodes", nc, "edges", ec)
	return nil
}

// parseGroup fans file parsing out over a bounded worker pool. Workers
// share nothing: each writes only its own slot of the results slice. Any
// malformed file fails the whole group.
func (ix *Indexer) parseGroup(ctx context.Context, grp discover.Group) ([]graph.FileResult, error) {
	workers := ix.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(grp.Files) {
		workers = len(grp.Files)
	}

	results := make([]graph.FileResult, len(grp.Files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range grp.Files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(filepath.Join(grp.RootPath, f))
			if err != nil {
				return err
			}
			parsed, err := astparse.Parse(f, source)
			if err != nil {
				return err
			}
			results[i] = visitor.VisitFile(grp.Namespace, f, grp.ModuleHints[f], parsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// commit applies one reconciliation atomically: retire rows owned by
// changed and deleted files, assert the fresh fragment, update the file
// fingerprints. Everything happens at a single instant, so an as-of read
// at any time sees exactly one consistent state.
func (ix *Indexer) commit(grp discover.Group, changes ChangeSet, logical graph.LogicalGraph, current map[string]string) error {
	fresh := make(map[string]bool, len(changes.Changed)+len(changes.New))
	for _, f := range changes.Changed {
		fresh[f] = true
	}
	for _, f := range changes.New {
		fresh[f] = true
	}

	fileOf := make(map[string]string, len(logical.Nodes()))
	var nodeRows []*store.Node
	for _, n := range logical.Nodes() {
		fileOf[n.ID.String()] = n.FilePath
		if !fresh[n.FilePath] {
			continue
		}
		nodeRows = append(nodeRows, &store.Node{
			Grp:       grp.Name,
			ID:        n.ID.String(),
			Kind:      n.Kind.String(),
			Name:      n.Name,
			Path:      n.PathKey(),
			FilePath:  n.FilePath,
			StartLine: int(n.StartLine),
			EndLine:   int(n.EndLine),
			Vis:       n.Vis,
			Attrs:     n.Attrs,
			Hash:      n.Hash.String(),
			Payload:   n.Payload,
		})
	}

	// Edges are attributed to their source node's file, the same key
	// retirement uses.
	var edgeRows []*store.Edge
	for _, r := range logical.Relations() {
		file, ok := fileOf[r.Source.String()]
		if !ok || !fresh[file] {
			continue
		}
		edgeRows = append(edgeRows, &store.Edge{
			Grp:        grp.Name,
			SourceID:   r.Source.String(),
			SourceKind: r.SourceKind.String(),
			TargetID:   r.Target.String(),
			TargetKind: r.TargetKind.String(),
			Type:       string(r.Kind),
			FilePath:   file,
		})
	}

	freshHashes := make(map[string]string, len(fresh))
	for f := range fresh {
		freshHashes[f] = current[f]
	}

	at := store.Now()
	return ix.Store.WithTransaction(func(tx *store.Store) error {
		if err := tx.UpsertGroup(store.Group{
			Name:      grp.Name,
			Version:   grp.Version,
			Namespace: grp.Namespace.String(),
			RootPath:  grp.RootPath,
		}); err != nil {
			return fmt.Errorf("upsert group: %w", err)
		}

		dirty := changes.Dirty()
		if err := tx.RetireNodesByFiles(grp.Name, dirty, at); err != nil {
			return err
		}
		if err := tx.RetireEdgesByFiles(grp.Name, dirty, at); err != nil {
			return err
		}
		if err := tx.AssertNodeBatch(nodeRows, at); err != nil {
			return err
		}
		if err := tx.AssertEdgeBatch(edgeRows, at); err != nil {
			return err
		}
		if err := tx.UpsertFileHashBatch(grp.Name, freshHashes); err != nil {
			return err
		}
		if err := tx.DeleteFileHashes(grp.Name, changes.Deleted); err != nil {
			return err
		}
		if ix.commitFault != nil {
			if err := ix.commitFault(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// GroupNameFromPath derives a stable group name from a path, for callers
// that index a bare directory without a manifest-driven name.
func GroupNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.TrimLeft(strings.ReplaceAll(cleaned, "/", "-"), "-")
	if name == "" {
		return "root"
	}
	return name
}
