// Ingestion-task persistence tracks the async sync_directory/upload/
// rebuild_index jobs spec.md §3's IngestionTask entity describes, grounded
// on kb_service.py's sync_directory/rebuild_index status bookkeeping.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CreateIngestionTask queues a new task in "queued" status.
func (s *Store) CreateIngestionTask(ctx context.Context, taskType, libraryID string, createdBy *string) (*IngestionTask, error) {
	t := IngestionTask{
		ID: uuid.New().String(), TaskType: taskType, Status: "queued",
		LibraryID: libraryID, CreatedBy: createdBy,
	}
	detailJSON, _ := json.Marshal(t.Detail)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ingestion_tasks (id, task_type, status, library_id, created_by, detail)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.TaskType, t.Status, t.LibraryID, t.CreatedBy, detailJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("create ingestion task: %w", err)
	}
	return &t, nil
}

// MarkRunning transitions a task to "running" and stamps started_at.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE ingestion_tasks SET status = 'running', started_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkCompleted transitions a task to "completed", stamps finished_at, and
// records the final detail payload.
func (s *Store) MarkCompleted(ctx context.Context, id string, detail IngestionDetail) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal ingestion detail: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`UPDATE ingestion_tasks SET status = 'completed', finished_at = NOW(), detail = $1 WHERE id = $2`,
		detailJSON, id)
	return err
}

// MarkFailed transitions a task to "failed" and records the error message,
// per spec.md §4's "ingestion failures degrade to a failed task record
// rather than crashing the server" note.
func (s *Store) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE ingestion_tasks SET status = 'failed', finished_at = NOW(), error_message = $1 WHERE id = $2`,
		errMsg, id)
	return err
}

// GetIngestionTask loads a single task by id.
func (s *Store) GetIngestionTask(ctx context.Context, id string) (*IngestionTask, error) {
	var t IngestionTask
	var createdBy sql.NullString
	var errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime
	var detailJSON []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, task_type, status, library_id, created_by, detail, error_message, started_at, finished_at, created_at
		 FROM ingestion_tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.TaskType, &t.Status, &t.LibraryID, &createdBy, &detailJSON, &errMsg, &startedAt, &finishedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.String
	}
	if errMsg.Valid {
		t.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if finishedAt.Valid {
		v := finishedAt.Time
		t.FinishedAt = &v
	}
	if len(detailJSON) > 0 {
		_ = json.Unmarshal(detailJSON, &t.Detail)
	}
	return &t, nil
}

// ListIngestionTasks lists a library's tasks, newest first.
func (s *Store) ListIngestionTasks(ctx context.Context, libraryID string) ([]IngestionTask, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id FROM ingestion_tasks WHERE library_id = $1 ORDER BY created_at DESC`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list ingestion tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ingestion task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]IngestionTask, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetIngestionTask(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}
