package store

import (
	"database/sql"
	"fmt"

	"github.com/pantrylabs/pantrypoints/internal/model"
)

// Archive run states.
const (
	ArchiveRunning = "running"
	ArchiveSuccess = "success"
	ArchiveFailed  = "failed"
)

// ArchiveStore records the history of ledger snapshot uploads.
type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

func (s *ArchiveStore) RecordStart(objectKey string) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO archive_runs (object_key, status) VALUES (?, ?)`,
		objectKey, ArchiveRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("insert archive run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *ArchiveStore) MarkSuccess(id, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE archive_runs SET status = ?, size_bytes = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ArchiveSuccess, sizeBytes, id,
	)
	if err != nil {
		return fmt.Errorf("mark archive success: %w", err)
	}
	return nil
}

func (s *ArchiveStore) MarkFailure(id int64, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE archive_runs SET status = ?, error = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ArchiveFailed, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark archive failure: %w", err)
	}
	return nil
}

func (s *ArchiveStore) ListRecent(limit int) ([]model.ArchiveRun, error) {
	rows, err := s.db.Query(
		`SELECT id, object_key, size_bytes, status, error, started_at, finished_at
		 FROM archive_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archive runs: %w", err)
	}
	defer rows.Close()

	var runs []model.ArchiveRun
	for rows.Next() {
		var r model.ArchiveRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.ObjectKey, &r.SizeBytes, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan archive run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
