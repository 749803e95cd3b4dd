package store

import (
	"database/sql"
)

// UpsertClassProgress stores the latest state of a class
func (s *Store) UpsertClassProgress(p *ClassProgress) error {
	_, err := s.db.Exec(`
		INSERT INTO class_progress (class_id, display_name, target, done, failed, terminal, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(class_id) DO UPDATE SET
			display_name = excluded.display_name,
			target = excluded.target,
			done = excluded.done,
			failed = excluded.failed,
			terminal = excluded.terminal,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, p.ClassID, p.DisplayName, p.Target, p.Done, p.Failed, p.Terminal, p.RunID)
	return err
}

// GetClassProgress returns the stored state of a class, or nil
func (s *Store) GetClassProgress(classID string) (*ClassProgress, error) {
	var p ClassProgress
	var updated sql.NullString

	err := s.db.QueryRow(`
		SELECT class_id, display_name, target, done, failed, COALESCE(terminal, ''), COALESCE(run_id, ''), updated_at
		FROM class_progress
		WHERE class_id = ?
	`, classID).Scan(&p.ClassID, &p.DisplayName, &p.Target, &p.Done, &p.Failed, &p.Terminal, &p.RunID, &updated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// GetAllClassProgress returns every class, ordered by display name
func (s *Store) GetAllClassProgress() ([]*ClassProgress, error) {
	return s.queryClassProgress("")
}

// GetClassProgressByRun returns the classes last touched by runID
func (s *Store) GetClassProgressByRun(runID string) ([]*ClassProgress, error) {
	return s.queryClassProgress(runID)
}

func (s *Store) queryClassProgress(runID string) ([]*ClassProgress, error) {
	rows, err := s.db.Query(`
		SELECT class_id, display_name, target, done, failed, COALESCE(terminal, ''), COALESCE(run_id, ''), updated_at
		FROM class_progress
		WHERE ? = '' OR run_id = ?
		ORDER BY display_name
	`, runID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*ClassProgress
	for rows.Next() {
		var p ClassProgress
		var updated sql.NullString
		if err := rows.Scan(&p.ClassID, &p.DisplayName, &p.Target, &p.Done, &p.Failed, &p.Terminal, &p.RunID, &updated); err != nil {
			return nil, err
		}
		p.UpdatedAt = parseTime(updated)
		all = append(all, &p)
	}

	return all, rows.Err()
}
