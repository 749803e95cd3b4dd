package store

import (
	"database/sql"
)

// InsertAttempt records one candidate attempt
func (s *Store) InsertAttempt(a *Attempt) error {
	result, err := s.db.Exec(`
		INSERT INTO attempts
		(run_id, class_id, source_id, outcome, reason, error, output_file, sample_rate, size_bytes, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`, a.RunID, a.ClassID, a.SourceID, a.Outcome, a.Reason, a.Error, a.OutputFile, a.SampleRate, a.SizeBytes, a.DurationMs)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetAttemptsByClass returns all attempts for a class, oldest first
func (s *Store) GetAttemptsByClass(classID string) ([]*Attempt, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, class_id, source_id, outcome, COALESCE(reason, ''), COALESCE(error, ''),
		       COALESCE(output_file, ''), COALESCE(sample_rate, 0), COALESCE(size_bytes, 0),
		       COALESCE(duration_ms, 0), created_at
		FROM attempts
		WHERE class_id = ?
		ORDER BY id
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var a Attempt
		var created sql.NullString
		err := rows.Scan(&a.ID, &a.RunID, &a.ClassID, &a.SourceID, &a.Outcome, &a.Reason, &a.Error,
			&a.OutputFile, &a.SampleRate, &a.SizeBytes, &a.DurationMs, &created)
		if err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(created)
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// CountFailureReasons returns rejected attempt counts by reason for a run.
// An empty runID counts across all runs.
func (s *Store) CountFailureReasons(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(reason, ''), COUNT(*)
		FROM attempts
		WHERE outcome = 'rejected' AND (? = '' OR run_id = ?)
		GROUP BY reason
	`, runID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		counts[reason] = n
	}

	return counts, rows.Err()
}

// GetTotalBytesAcquired returns the size of all acquired clips in a run
func (s *Store) GetTotalBytesAcquired(runID string) (int64, error) {
	var total int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(size_bytes), 0) FROM attempts
		WHERE outcome = 'acquired' AND (? = '' OR run_id = ?)
	`, runID, runID).Scan(&total)

	return total, err
}

// CountAttempts returns the number of attempts with outcome in a run.
// An empty runID counts across all runs.
func (s *Store) CountAttempts(runID, outcome string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM attempts
		WHERE outcome = ? AND (? = '' OR run_id = ?)
	`, outcome, runID, runID).Scan(&count)

	return count, err
}
