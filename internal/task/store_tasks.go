package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Create inserts a new pending task and returns the stored row.
func (s *Store) Create(ctx context.Context, req NewTaskRequest) (*Task, error) {
	if req.SourceURL == "" {
		return nil, errors.New("source url is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	configJSON, err := req.PipelineConfig.marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal pipeline config: %w", err)
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            id, source_url, title, platform, tenant, project, status,
            content_lang, target_lang, pipeline_config_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		req.SourceURL,
		nullableString(req.Title),
		nullableString(req.Platform),
		nullableString(req.Tenant),
		nullableString(req.Project),
		StatusPending,
		nullableString(req.ContentLang),
		nullableString(req.TargetLang),
		configJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier. Missing tasks yield (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Update persists changes to an existing task.
func (s *Store) Update(ctx context.Context, t *Task) error {
	if t == nil {
		return errors.New("task is nil")
	}
	t.UpdatedAt = time.Now().UTC()

	configJSON, err := t.PipelineConfig.marshal()
	if err != nil {
		return fmt.Errorf("marshal pipeline config: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET
            source_url = ?, title = ?, platform = ?, tenant = ?, project = ?,
            status = ?, last_step = ?, error_reason = ?, error_message = ?,
            raw_path = ?, duration_seconds = ?, content_lang = ?, target_lang = ?,
            pipeline_config_json = ?,
            parse_state = ?, parse_key = ?, parse_error = ?,
            subtitles_state = ?, subtitles_key = ?, subtitles_error = ?,
            dub_state = ?, dub_key = ?, dub_error = ?,
            pack_state = ?, pack_key = ?, pack_error = ?,
            scenes_state = ?, scenes_key = ?, scenes_error = ?,
            publish_state = ?, publish_key = ?, publish_error = ?,
            publish_url = ?, publish_provider = ?, pack_hash = ?, updated_at = ?
        WHERE id = ?`,
		t.SourceURL,
		nullableString(t.Title),
		nullableString(t.Platform),
		nullableString(t.Tenant),
		nullableString(t.Project),
		t.Status,
		nullableString(string(t.LastStep)),
		nullableString(t.ErrorReason),
		nullableString(t.ErrorMessage),
		nullableString(t.RawPath),
		t.DurationSeconds,
		nullableString(t.ContentLang),
		nullableString(t.TargetLang),
		configJSON,
		nullableString(string(t.Parse.State)), nullableString(t.Parse.Key), nullableString(t.Parse.ErrorMsg),
		nullableString(string(t.Subtitles.State)), nullableString(t.Subtitles.Key), nullableString(t.Subtitles.ErrorMsg),
		nullableString(string(t.Dub.State)), nullableString(t.Dub.Key), nullableString(t.Dub.ErrorMsg),
		nullableString(string(t.Pack.State)), nullableString(t.Pack.Key), nullableString(t.Pack.ErrorMsg),
		nullableString(string(t.Scenes.State)), nullableString(t.Scenes.Key), nullableString(t.Scenes.ErrorMsg),
		nullableString(string(t.Publish.State)), nullableString(t.Publish.Key), nullableString(t.Publish.ErrorMsg),
		nullableString(t.PublishURL),
		nullableString(t.PublishProvider),
		nullableString(t.PackHash),
		t.UpdatedAt.Format(time.RFC3339Nano),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s not found", t.ID)
	}
	return nil
}

// List returns tasks ordered by creation time, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (?` + repeatPlaceholder(len(statuses)-1) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

// ClaimNextPending atomically promotes the oldest pending task to processing
// and returns it. It returns (nil, nil) when no task is pending.
func (s *Store) ClaimNextPending(ctx context.Context) (*Task, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var id string
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			`SELECT id FROM tasks WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			StatusPending,
		)
		if err := row.Scan(&id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			StatusProcessing, now, id,
		); err != nil {
			return fmt.Errorf("claim task %s: %w", id, err)
		}
		return tx.Commit()
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ResetStuck returns tasks stranded in processing back to pending. It is run
// at daemon startup so an unclean shutdown never wedges the queue.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// RetryErrored returns a single errored task to pending so the pipeline can
// pick it up again. Completed step artifacts are kept so the rerun resumes.
func (s *Store) RetryErrored(ctx context.Context, id string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, error_reason = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusError,
	)
	if err != nil {
		return fmt.Errorf("retry task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s is not in error state", id)
	}
	return nil
}

// Summary aggregates task counts by lifecycle state.
func (s *Store) Summary(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("summarize tasks: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan summary: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusReady:
			summary.Ready = count
		case StatusError:
			summary.Errored = count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("iterate summary: %w", err)
	}
	return summary, nil
}
