package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO processing_tasks (
			job_id, task_id, recording_id, status, output, asset_id,
			frame_count, failed_frames, detection_count, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	_, err := r.pool.Exec(ctx, query,
		task.JobID, task.TaskID, task.RecordingID, string(task.Status),
		nullableJSON(task.Output), task.AssetID,
		task.FrameCount, task.FailedFrames, task.DetectionCount,
		task.Attempt, task.MaxAttempts, task.ErrorMessage,
		task.CreatedAt, task.UpdatedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	query := `
		UPDATE processing_tasks SET
			status=$3, output=$4, asset_id=$5, frame_count=$6, failed_frames=$7,
			detection_count=$8, attempt=$9, error_message=$10, updated_at=$11, completed_at=$12
		WHERE job_id=$1 AND task_id=$2`

	tag, err := r.pool.Exec(ctx, query,
		task.JobID, task.TaskID, string(task.Status),
		nullableJSON(task.Output), task.AssetID,
		task.FrameCount, task.FailedFrames, task.DetectionCount,
		task.Attempt, task.ErrorMessage, task.UpdatedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task: %s/%s not found", task.JobID, task.TaskID)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, jobID, taskID string) (*entity.Task, error) {
	query := `
		SELECT job_id, task_id, recording_id, status, output, asset_id,
			frame_count, failed_frames, detection_count, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		FROM processing_tasks WHERE job_id=$1 AND task_id=$2`

	task := &entity.Task{}
	var (
		status string
		output []byte
	)
	err := r.pool.QueryRow(ctx, query, jobID, taskID).Scan(
		&task.JobID, &task.TaskID, &task.RecordingID, &status, &output, &task.AssetID,
		&task.FrameCount, &task.FailedFrames, &task.DetectionCount,
		&task.Attempt, &task.MaxAttempts, &task.ErrorMessage,
		&task.CreatedAt, &task.UpdatedAt, &task.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find task by id: %w", err)
	}
	task.Status = entity.TaskStatus(status)
	if len(output) > 0 {
		task.Output = json.RawMessage(output)
	}
	return task, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
