package pipeline

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// ChangeSet partitions a group's files against the previous
// reconciliation. Paths are relative to the group root and sorted.
type ChangeSet struct {
	Unchanged []string
	Changed   []string
	New       []string
	Deleted   []string
}

// IsEmpty reports whether the reconciliation would be a no-op.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Changed) == 0 && len(c.New) == 0 && len(c.Deleted) == 0
}

// Dirty returns the files whose stored rows must be retired: changed plus
// deleted.
func (c ChangeSet) Dirty() []string {
	out := make([]string, 0, len(c.Changed)+len(c.Deleted))
	out = append(out, c.Changed...)
	out = append(out, c.Deleted...)
	sort.Strings(out)
	return out
}

// FingerprintFiles hashes file contents in parallel. The result maps each
// relative path to its content fingerprint; a read failure fails the
// whole group.
func FingerprintFiles(ctx context.Context, rootPath string, files []string, workers int) (map[string]string, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	hashes := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := fileHash(filepath.Join(rootPath, f))
			if err != nil {
				return err
			}
			hashes[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(files))
	for i, f := range files {
		result[f] = hashes[i]
	}
	return result, nil
}

// Classify splits the current file set against stored fingerprints. Pure:
// same inputs, same partition.
func Classify(stored, current map[string]string) ChangeSet {
	var c ChangeSet
	for f, h := range current {
		prev, known := stored[f]
		switch {
		case !known:
			c.New = append(c.New, f)
		case prev != h:
			c.Changed = append(c.Changed, f)
		default:
			c.Unchanged = append(c.Unchanged, f)
		}
	}
	for f := range stored {
		if _, ok := current[f]; !ok {
			c.Deleted = append(c.Deleted, f)
		}
	}
	sort.Strings(c.Unchanged)
	sort.Strings(c.Changed)
	sort.Strings(c.New)
	sort.Strings(c.Deleted)
	return c
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}
