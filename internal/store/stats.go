package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath       string      `json:"db_path"`
	DBSizeBytes  int64       `json:"db_size_bytes"`
	TotalRecords int         `json:"total_records"`
	Kinds        []KindStats `json:"kinds"`
}

// KindStats holds per-kind counts. Unsynced records have no identifier yet.
type KindStats struct {
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
	Synced   int    `json:"synced"`
	Unsynced int    `json:"unsynced"`
}

// Stats returns database statistics. It reads committed state only.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&st.TotalRecords); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) AS cnt, COUNT(sync_display_uuid) AS synced
		FROM records
		GROUP BY kind ORDER BY cnt DESC, kind`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var k KindStats
		if err := rows.Scan(&k.Kind, &k.Count, &k.Synced); err != nil {
			return st, err
		}
		k.Unsynced = k.Count - k.Synced
		st.Kinds = append(st.Kinds, k)
	}
	return st, rows.Err()
}
