package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Node is one stored node assertion. ID is the identifier's string form;
// AssertedAt/RetiredAt bound the instants during which the row is the
// node's current state.
type Node struct {
	Grp        string
	ID         string
	Kind       string
	Name       string
	Path       string
	FilePath   string
	StartLine  int
	EndLine    int
	Vis        string
	Attrs      []string
	Hash       string
	Payload    map[string]any
	AssertedAt string
	RetiredAt  string // empty while live
}

const nodeCols = "grp, id, kind, name, path, file_path, start_line, end_line, vis, attrs, hash, payload, asserted_at, retired_at"

const numNodeCols = 13 // insert columns; retired_at starts NULL
const nodesBatchSize = 999 / numNodeCols

// AssertNodeBatch inserts node rows as of the given instant in batched
// multi-row INSERTs. Rows are born live; the partial unique index rejects
// a second live row for the same identifier.
func (s *Store) AssertNodeBatch(nodes []*Node, at string) error {
	if len(nodes) == 0 {
		return nil
	}
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := i + nodesBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if err := s.assertNodeChunk(nodes[i:end], at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) assertNodeChunk(batch []*Node, at string) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (grp, id, kind, name, path, file_path, start_line, end_line, vis, attrs, hash, payload, asserted_at) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, n.Grp, n.ID, n.Kind, n.Name, n.Path, n.FilePath,
			n.StartLine, n.EndLine, n.Vis, marshalStrings(n.Attrs), n.Hash,
			marshalProps(n.Payload), at)
	}

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("assert node batch: %w", err)
	}
	return nil
}

// RetireNodesByFiles retires every live node owned by the given files as
// of the given instant. The rows stay queryable for instants before at.
func (s *Store) RetireNodesByFiles(grp string, files []string, at string) error {
	return s.retireByFiles("nodes", grp, files, at)
}

// filesBatchSize bounds IN-clause size (2 fixed vars + N files).
const filesBatchSize = 990

func (s *Store) retireByFiles(table, grp string, files []string, at string) error {
	for i := 0; i < len(files); i += filesBatchSize {
		end := i + filesBatchSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)+2)
		args = append(args, at, grp)
		for j, f := range chunk {
			placeholders[j] = "?"
			args = append(args, f)
		}

		query := fmt.Sprintf(
			"UPDATE %s SET retired_at=? WHERE grp=? AND retired_at IS NULL AND file_path IN (%s)",
			table, strings.Join(placeholders, ","))
		if _, err := s.q.Exec(query, args...); err != nil {
			return fmt.Errorf("retire %s by files: %w", table, err)
		}
	}
	return nil
}

// CurrentNodes returns every live node in a group.
func (s *Store) CurrentNodes(grp string) ([]*Node, error) {
	rows, err := s.q.Query(
		"SELECT "+nodeCols+" FROM nodes WHERE grp=? AND retired_at IS NULL ORDER BY path",
		grp)
	if err != nil {
		return nil, fmt.Errorf("current nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// NodesAsOf returns the nodes that were current at the given instant: a
// row is visible when it was asserted at or before the instant and not
// yet retired.
func (s *Store) NodesAsOf(grp, at string) ([]*Node, error) {
	rows, err := s.q.Query(
		"SELECT "+nodeCols+" FROM nodes WHERE grp=? AND asserted_at <= ? AND (retired_at IS NULL OR retired_at > ?) ORDER BY path",
		grp, at, at)
	if err != nil {
		return nil, fmt.Errorf("nodes as of: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// NodesByFile returns the live nodes owned by one file.
func (s *Store) NodesByFile(grp, filePath string) ([]*Node, error) {
	rows, err := s.q.Query(
		"SELECT "+nodeCols+" FROM nodes WHERE grp=? AND file_path=? AND retired_at IS NULL ORDER BY path",
		grp, filePath)
	if err != nil {
		return nil, fmt.Errorf("nodes by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// NodesByPath returns the live nodes with a given logical path key.
func (s *Store) NodesByPath(grp, path string) ([]*Node, error) {
	rows, err := s.q.Query(
		"SELECT "+nodeCols+" FROM nodes WHERE grp=? AND path=? AND retired_at IS NULL",
		grp, path)
	if err != nil {
		return nil, fmt.Errorf("nodes by path: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountLiveNodes returns the number of live nodes in a group.
func (s *Store) CountLiveNodes(grp string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE grp=? AND retired_at IS NULL", grp).Scan(&count)
	return count, err
}

// CountNodesAsOf returns the number of nodes current at an instant.
func (s *Store) CountNodesAsOf(grp, at string) (int, error) {
	var count int
	err := s.q.QueryRow(
		"SELECT COUNT(*) FROM nodes WHERE grp=? AND asserted_at <= ? AND (retired_at IS NULL OR retired_at > ?)",
		grp, at, at).Scan(&count)
	return count, err
}

// CountNodeRows returns every stored assertion including retired history.
func (s *Store) CountNodeRows(grp string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE grp=?", grp).Scan(&count)
	return count, err
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		var n Node
		var attrs, payload string
		var retired sql.NullString
		if err := rows.Scan(&n.Grp, &n.ID, &n.Kind, &n.Name, &n.Path, &n.FilePath,
			&n.StartLine, &n.EndLine, &n.Vis, &attrs, &n.Hash, &payload,
			&n.AssertedAt, &retired); err != nil {
			return nil, err
		}
		n.Attrs = unmarshalStrings(attrs)
		n.Payload = unmarshalProps(payload)
		n.RetiredAt = retired.String
		result = append(result, &n)
	}
	return result, rows.Err()
}

func marshalProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalProps(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func marshalStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalStrings(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil
	}
	return ss
}
