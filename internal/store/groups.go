package store

import "fmt"

// Group is the stored metadata for one indexed unit.
type Group struct {
	Name      string
	Version   string
	Namespace string
	RootPath  string
	IndexedAt string
}

// UpsertGroup creates or updates a group record.
func (s *Store) UpsertGroup(g Group) error {
	_, err := s.q.Exec(`
		INSERT INTO groups (name, version, namespace, root_path, indexed_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version=excluded.version, namespace=excluded.namespace,
			root_path=excluded.root_path, indexed_at=excluded.indexed_at`,
		g.Name, g.Version, g.Namespace, g.RootPath, Now())
	return err
}

// GetGroup returns a group by name.
func (s *Store) GetGroup(name string) (*Group, error) {
	var g Group
	err := s.q.QueryRow("SELECT name, version, namespace, root_path, indexed_at FROM groups WHERE name=?", name).
		Scan(&g.Name, &g.Version, &g.Namespace, &g.RootPath, &g.IndexedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns all indexed groups.
func (s *Store) ListGroups() ([]*Group, error) {
	rows, err := s.q.Query("SELECT name, version, namespace, root_path, indexed_at FROM groups ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Name, &g.Version, &g.Namespace, &g.RootPath, &g.IndexedAt); err != nil {
			return nil, err
		}
		result = append(result, &g)
	}
	return result, rows.Err()
}

// GetFileHashes returns all stored file fingerprints for a group.
func (s *Store) GetFileHashes(grp string) (map[string]string, error) {
	rows, err := s.q.Query("SELECT rel_path, hash FROM file_hashes WHERE grp=?", grp)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// hashesBatchSize keeps multi-row hash upserts under the 999-var limit.
const hashesBatchSize = 300 // 3 cols

// UpsertFileHashBatch stores file fingerprints in batched multi-row INSERTs.
func (s *Store) UpsertFileHashBatch(grp string, hashes map[string]string) error {
	if len(hashes) == 0 {
		return nil
	}
	type pair struct{ path, hash string }
	all := make([]pair, 0, len(hashes))
	for p, h := range hashes {
		all = append(all, pair{p, h})
	}

	for i := 0; i < len(all); i += hashesBatchSize {
		end := i + hashesBatchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[i:end]

		query := "INSERT INTO file_hashes (grp, rel_path, hash) VALUES "
		args := make([]any, 0, len(batch)*3)
		for j, p := range batch {
			if j > 0 {
				query += ","
			}
			query += "(?,?,?)"
			args = append(args, grp, p.path, p.hash)
		}
		query += " ON CONFLICT(grp, rel_path) DO UPDATE SET hash=excluded.hash"

		if _, err := s.q.Exec(query, args...); err != nil {
			return fmt.Errorf("upsert file hash batch: %w", err)
		}
	}
	return nil
}

// DeleteFileHash removes a single file fingerprint.
func (s *Store) DeleteFileHash(grp, relPath string) error {
	_, err := s.q.Exec("DELETE FROM file_hashes WHERE grp=? AND rel_path=?", grp, relPath)
	return err
}

// DeleteFileHashes removes fingerprints for a set of files.
func (s *Store) DeleteFileHashes(grp string, relPaths []string) error {
	for _, p := range relPaths {
		if err := s.DeleteFileHash(grp, p); err != nil {
			return err
		}
	}
	return nil
}
