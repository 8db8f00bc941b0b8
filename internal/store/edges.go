package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Edge is one stored typed edge assertion. FilePath attributes the edge
// to the file whose reconciliation asserted it, which is what retirement
// keys on.
type Edge struct {
	Grp        string
	SourceID   string
	SourceKind string
	TargetID   string
	TargetKind string
	Type       string
	FilePath   string
	AssertedAt string
	RetiredAt  string // empty while live
}

const edgeCols = "grp, source_id, source_kind, target_id, target_kind, type, file_path, asserted_at, retired_at"

const numEdgeCols = 8 // insert columns; retired_at starts NULL
const edgesBatchSize = 999 / numEdgeCols

// AssertEdgeBatch inserts edge rows as of the given instant in batched
// multi-row INSERTs.
func (s *Store) AssertEdgeBatch(edges []*Edge, at string) error {
	if len(edges) == 0 {
		return nil
	}
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := i + edgesBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		if err := s.assertEdgeChunk(edges[i:end], at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) assertEdgeChunk(batch []*Edge, at string) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (grp, source_id, source_kind, target_id, target_kind, type, file_path, asserted_at) VALUES `)

	args := make([]any, 0, len(batch)*numEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, e.Grp, e.SourceID, e.SourceKind, e.TargetID, e.TargetKind, e.Type, e.FilePath, at)
	}

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("assert edge batch: %w", err)
	}
	return nil
}

// RetireEdgesByFiles retires every live edge attributed to the given
// files as of the given instant.
func (s *Store) RetireEdgesByFiles(grp string, files []string, at string) error {
	return s.retireByFiles("edges", grp, files, at)
}

// CurrentEdges returns every live edge in a group.
func (s *Store) CurrentEdges(grp string) ([]*Edge, error) {
	rows, err := s.q.Query(
		"SELECT "+edgeCols+" FROM edges WHERE grp=? AND retired_at IS NULL ORDER BY type, source_id",
		grp)
	if err != nil {
		return nil, fmt.Errorf("current edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesAsOf returns the edges that were current at the given instant.
func (s *Store) EdgesAsOf(grp, at string) ([]*Edge, error) {
	rows, err := s.q.Query(
		"SELECT "+edgeCols+" FROM edges WHERE grp=? AND asserted_at <= ? AND (retired_at IS NULL OR retired_at > ?) ORDER BY type, source_id",
		grp, at, at)
	if err != nil {
		return nil, fmt.Errorf("edges as of: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// EdgesBySource returns the live edges from one source identifier.
func (s *Store) EdgesBySource(grp, sourceID string) ([]*Edge, error) {
	rows, err := s.q.Query(
		"SELECT "+edgeCols+" FROM edges WHERE grp=? AND source_id=? AND retired_at IS NULL",
		grp, sourceID)
	if err != nil {
		return nil, fmt.Errorf("edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountLiveEdges returns the number of live edges in a group.
func (s *Store) CountLiveEdges(grp string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE grp=? AND retired_at IS NULL", grp).Scan(&count)
	return count, err
}

// CountEdgesAsOf returns the number of edges current at an instant.
func (s *Store) CountEdgesAsOf(grp, at string) (int, error) {
	var count int
	err := s.q.QueryRow(
		"SELECT COUNT(*) FROM edges WHERE grp=? AND asserted_at <= ? AND (retired_at IS NULL OR retired_at > ?)",
		grp, at, at).Scan(&count)
	return count, err
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var retired sql.NullString
		if err := rows.Scan(&e.Grp, &e.SourceID, &e.SourceKind, &e.TargetID, &e.TargetKind,
			&e.Type, &e.FilePath, &e.AssertedAt, &retired); err != nil {
			return nil, err
		}
		e.RetiredAt = retired.String
		result = append(result, &e)
	}
	return result, rows.Err()
}
