package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// StartRun records a new run and returns it with a fresh time-ordered id
func (s *Store) StartRun(seed uint64, startIndex, endIndex, maxPerClass, classes int) (*Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	run := &Run{
		ID:          id.String(),
		Seed:        seed,
		StartIndex:  startIndex,
		EndIndex:    endIndex,
		MaxPerClass: maxPerClass,
		Classes:     classes,
		Status:      "running",
	}

	// SQLite integers are signed; the seed round-trips through int64
	_, err = s.db.Exec(`
		INSERT INTO runs (id, started_at, seed, start_index, end_index, max_per_class, classes, status)
		VALUES (?, datetime('now'), ?, ?, ?, ?, ?, ?)
	`, run.ID, int64(seed), startIndex, endIndex, maxPerClass, classes, run.Status)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return run, nil
}

// FinishRun marks a run as completed or interrupted
func (s *Store) FinishRun(id string, status string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = datetime('now'), status = ? WHERE id = ?
	`, status, id)
	return err
}

// GetRun returns a run by id, or nil if it does not exist
func (s *Store) GetRun(id string) (*Run, error) {
	return s.scanRun(s.db.QueryRow(runColumns+" WHERE id = ?", id))
}

// LatestRun returns the most recently started run, or nil
func (s *Store) LatestRun() (*Run, error) {
	return s.scanRun(s.db.QueryRow(runColumns + " ORDER BY started_at DESC, id DESC LIMIT 1"))
}

const runColumns = `
	SELECT id, started_at, finished_at, seed, start_index, end_index, max_per_class, classes, status
	FROM runs`

func (s *Store) scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var started, finished sql.NullString
	var seed int64

	err := row.Scan(&r.ID, &started, &finished, &seed, &r.StartIndex, &r.EndIndex, &r.MaxPerClass, &r.Classes, &r.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Seed = uint64(seed)
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return &r, nil
}
