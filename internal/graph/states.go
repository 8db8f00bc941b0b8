package graph

import (
	"log/slog"

	"github.com/google/uuid"
)

// FileResult is the complete output of one visitor instance: everything
// derivable from a single file with no cross-file knowledge.
type FileResult struct {
	FilePath  string
	Nodes     []Node
	Relations []Relation
	Pending   []PendingRelation
}

// UnvalidatedGraph is the raw fan-in of all workers' output. It may
// contain duplicate identifiers and must pass Validate before anything
// downstream touches it.
type UnvalidatedGraph struct {
	nodes     []Node
	relations []Relation
	pending   []PendingRelation
}

// Merge concatenates worker output in input order. This is the barrier
// point: callers must only invoke it after every worker has finished.
func Merge(results []FileResult) UnvalidatedGraph {
	var g UnvalidatedGraph
	for _, r := range results {
		g.nodes = append(g.nodes, r.Nodes...)
		g.relations = append(g.relations, r.Relations...)
		g.pending = append(g.pending, r.Pending...)
	}
	return g
}

// ValidatedGraph is an UnvalidatedGraph whose identifiers passed the
// uniqueness check, with lookup indexes built. Only Validate constructs
// one.
type ValidatedGraph struct {
	nodes     []Node
	relations []Relation
	pending   []PendingRelation
	byID      map[uuid.UUID]int
	byPath    map[string][]int
	byName    map[string][]int
}

// Validate checks identifier uniqueness and indexes the graph. Two nodes
// sharing an identifier with identical tracking hashes are unified
// (content addressing makes this the cfg-duplicate case); differing
// hashes are a hard error carrying both node descriptions.
func (g UnvalidatedGraph) Validate() (ValidatedGraph, error) {
	v := ValidatedGraph{
		pending: g.pending,
		byID:    make(map[uuid.UUID]int, len(g.nodes)),
		byPath:  make(map[string][]int, len(g.nodes)),
		byName:  make(map[string][]int, len(g.nodes)),
	}

	for _, n := range g.nodes {
		key := n.ID.UUID()
		if prev, dup := v.byID[key]; dup {
			if v.nodes[prev].Hash != n.Hash {
				return ValidatedGraph{}, &DuplicateIdentifierError{
					ID:     n.ID,
					First:  describe(v.nodes[prev]),
					Second: describe(n),
				}
			}
			// Identical content under one identifier: unified.
			continue
		}
		idx := len(v.nodes)
		v.nodes = append(v.nodes, n)
		v.byID[key] = idx
		v.byPath[n.PathKey()] = append(v.byPath[n.PathKey()], idx)
		v.byName[n.Name] = append(v.byName[n.Name], idx)
	}

	seen := make(map[string]bool, len(g.relations))
	for _, r := range g.relations {
		if k := r.key(); !seen[k] {
			seen[k] = true
			v.relations = append(v.relations, r)
		}
	}

	slog.Debug("graph.validated",
		"nodes", len(v.nodes), "relations", len(v.relations), "pending", len(v.pending))
	return v, nil
}

// LogicalGraph is the post-resolution graph: module hierarchy finalized,
// every pending relation resolved or deliberately kept external, all
// group-local identifiers promoted to Resolved.
type LogicalGraph struct {
	nodes     []Node
	relations []Relation
}

// Nodes returns the committed node set.
func (g LogicalGraph) Nodes() []Node { return g.nodes }

// Relations returns the committed typed edge set.
func (g LogicalGraph) Relations() []Relation { return g.relations }
